package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/offer/domain"
	"github.com/easybilling/easybilling/internal/offer/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("offer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOfferRequest) (domain.Offer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Offer{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Offer{}, domain.ErrInvalidName
	}
	switch req.Type {
	case domain.OfferTypePercentage, domain.OfferTypeFixedAmount, domain.OfferTypeMinimumPurchase:
	default:
		return domain.Offer{}, domain.ErrInvalidType
	}
	if req.DiscountValue.IsNegative() || req.DiscountValue.IsZero() {
		return domain.Offer{}, domain.ErrInvalidValue
	}

	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = s.clock.Now()
	}

	now := s.clock.Now()
	offer := domain.Offer{
		ID:                    s.genID.Generate(),
		TenantID:              tenantID,
		Name:                  name,
		Type:                  req.Type,
		Status:                domain.OfferStatusActive,
		DiscountValue:         req.DiscountValue,
		MinimumPurchaseAmount: req.MinimumPurchaseAmount,
		MaximumDiscountAmount: req.MaximumDiscountAmount,
		ValidFrom:             validFrom,
		ValidTo:               req.ValidTo,
		UsageLimit:            req.UsageLimit,
		Stackable:             req.Stackable,
		Priority:              req.Priority,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	for _, raw := range req.ProductIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return domain.Offer{}, domain.ErrInvalidID
		}
		offer.Products = append(offer.Products, domain.OfferProduct{OfferID: offer.ID, ProductID: id})
	}
	for _, raw := range req.CategoryIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return domain.Offer{}, domain.ErrInvalidID
		}
		offer.Categories = append(offer.Categories, domain.OfferCategory{OfferID: offer.ID, CategoryID: id})
	}

	if err := s.repo.Insert(ctx, s.db, &offer); err != nil {
		return domain.Offer{}, err
	}
	return offer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Offer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Offer{}, domain.ErrInvalidTenant
	}

	parsed, err := s.parseID(id)
	if err != nil {
		return domain.Offer{}, err
	}

	offer, err := s.repo.FindByID(ctx, s.db, tenantID, parsed)
	if err != nil {
		return domain.Offer{}, err
	}
	if offer == nil {
		return domain.Offer{}, domain.ErrNotFound
	}
	return *offer, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Offer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, tenantID)
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}

	parsed, err := s.parseID(id)
	if err != nil {
		return err
	}

	affected, err := s.repo.SetStatus(ctx, s.db, tenantID, parsed, domain.OfferStatusInactive)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) CalculateDiscount(ctx context.Context, offerID string, req domain.ResolveRequest) (decimal.Decimal, error) {
	offer, err := s.GetByID(ctx, offerID)
	if err != nil {
		return decimal.Zero, err
	}
	return offer.DiscountFor(req.PurchaseAmount, req.ProductIDs, req.CategoryIDs, s.clock.Now()), nil
}

func (s *Service) ApplyOffer(ctx context.Context, offerID string, req domain.ResolveRequest) (decimal.Decimal, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return decimal.Zero, domain.ErrInvalidTenant
	}

	parsed, err := s.parseID(offerID)
	if err != nil {
		return decimal.Zero, err
	}

	offer, err := s.repo.FindByID(ctx, s.db, tenantID, parsed)
	if err != nil {
		return decimal.Zero, err
	}
	if offer == nil {
		return decimal.Zero, domain.ErrNotFound
	}

	now := s.clock.Now()
	discount := offer.DiscountFor(req.PurchaseAmount, req.ProductIDs, req.CategoryIDs, now)
	if discount.IsZero() {
		return decimal.Zero, nil
	}

	// The conditional increment is the usage-limit check; a plain
	// read-then-write would race past the cap under contention.
	affected, err := s.repo.ConsumeUsage(ctx, s.db, tenantID, parsed, now)
	if err != nil {
		return decimal.Zero, err
	}
	if affected == 0 {
		return decimal.Zero, domain.ErrUsageLimitExceeded
	}

	return discount, nil
}

func (s *Service) BestOffers(ctx context.Context, req domain.ResolveRequest) ([]domain.OfferDiscount, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	offers, err := s.repo.ListActive(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var stackable []domain.OfferDiscount
	var bestExclusive *domain.OfferDiscount
	for i := range offers {
		discount := offers[i].DiscountFor(req.PurchaseAmount, req.ProductIDs, req.CategoryIDs, now)
		if discount.IsZero() {
			continue
		}
		entry := domain.OfferDiscount{Offer: offers[i], Discount: discount}
		if offers[i].Stackable {
			stackable = append(stackable, entry)
			continue
		}
		// Strictly-greater keeps the earliest offer on ties.
		if bestExclusive == nil || entry.Discount.GreaterThan(bestExclusive.Discount) {
			copied := entry
			bestExclusive = &copied
		}
	}

	// Non-stackable offers are mutually exclusive with everything else.
	if bestExclusive != nil {
		return []domain.OfferDiscount{*bestExclusive}, nil
	}

	sort.SliceStable(stackable, func(i, j int) bool {
		return stackable[i].Offer.Priority > stackable[j].Offer.Priority
	})
	return stackable, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
