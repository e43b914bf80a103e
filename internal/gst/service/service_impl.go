package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/gst/domain"
	"github.com/easybilling/easybilling/internal/gst/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

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
		log:   p.Log.Named("gst.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Calculate(ctx context.Context, code string, amount decimal.Decimal, supplierState, customerState string) (domain.TaxBreakup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TaxBreakup{}, domain.ErrInvalidTenant
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return domain.TaxBreakup{}, domain.ErrInvalidCode
	}

	now := s.clock.Now()
	rate, err := s.repo.FindActiveByCode(ctx, s.db, tenantID, code, domain.CodeKindHSN, now)
	if err != nil {
		return domain.TaxBreakup{}, err
	}
	if rate == nil {
		rate, err = s.repo.FindActiveByCode(ctx, s.db, tenantID, code, domain.CodeKindSAC, now)
		if err != nil {
			return domain.TaxBreakup{}, err
		}
	}
	if rate == nil {
		return domain.TaxBreakup{}, domain.ErrNotFound
	}

	interstate := !strings.EqualFold(strings.TrimSpace(supplierState), strings.TrimSpace(customerState))
	return breakup(*rate, amount, interstate), nil
}

func (s *Service) CalculateForCategory(ctx context.Context, category string, amount decimal.Decimal, interstate bool) (domain.TaxBreakup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TaxBreakup{}, domain.ErrInvalidTenant
	}

	category = strings.TrimSpace(category)
	if category == "" {
		return domain.TaxBreakup{}, domain.ErrInvalidCode
	}

	rate, err := s.repo.FindActiveByCategory(ctx, s.db, tenantID, category, s.clock.Now())
	if err != nil {
		return domain.TaxBreakup{}, err
	}
	if rate == nil {
		return domain.TaxBreakup{}, domain.ErrNotFound
	}

	return breakup(*rate, amount, interstate), nil
}

// breakup splits amount into GST components. Intra-state sales carry
// CGST+SGST, inter-state sales carry IGST. Cess applies regardless.
func breakup(rate domain.GstRate, amount decimal.Decimal, interstate bool) domain.TaxBreakup {
	var out domain.TaxBreakup
	if interstate {
		out.IGST = amount.Mul(rate.IGSTRate).Div(hundred).Round(2)
		out.CGST = decimal.Zero
		out.SGST = decimal.Zero
	} else {
		out.CGST = amount.Mul(rate.CGSTRate).Div(hundred).Round(2)
		out.SGST = amount.Mul(rate.SGSTRate).Div(hundred).Round(2)
		out.IGST = decimal.Zero
	}
	out.Cess = amount.Mul(rate.CessRate).Div(hundred).Round(2)
	out.TotalTax = out.CGST.Add(out.SGST).Add(out.IGST).Add(out.Cess)
	return out
}

func (s *Service) CreateRate(ctx context.Context, req domain.CreateRateRequest) (domain.GstRate, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.GstRate{}, domain.ErrInvalidTenant
	}

	code := strings.TrimSpace(req.Code)
	if code == "" && strings.TrimSpace(req.Category) == "" {
		return domain.GstRate{}, domain.ErrInvalidCode
	}
	if req.CGSTRate.IsNegative() || req.SGSTRate.IsNegative() || req.IGSTRate.IsNegative() || req.CessRate.IsNegative() {
		return domain.GstRate{}, domain.ErrInvalidRate
	}

	kind := req.CodeKind
	if kind == "" {
		kind = domain.CodeKindHSN
	}
	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = s.clock.Now()
	}

	now := s.clock.Now()
	rate := domain.GstRate{
		ID:        s.genID.Generate(),
		Code:      code,
		CodeKind:  kind,
		Category:  strings.TrimSpace(req.Category),
		CGSTRate:  req.CGSTRate,
		SGSTRate:  req.SGSTRate,
		IGSTRate:  req.IGSTRate,
		CessRate:  req.CessRate,
		ValidFrom: validFrom,
		ValidTo:   req.ValidTo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !req.Global {
		rate.TenantID = &tenantID
	}

	if err := s.repo.Insert(ctx, s.db, &rate); err != nil {
		return domain.GstRate{}, err
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, req domain.ListRatesRequest) ([]domain.GstRate, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, tenantID, req)
}

func (s *Service) DeleteRate(ctx context.Context, id string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.ErrInvalidID
	}

	affected, err := s.repo.Delete(ctx, s.db, tenantID, parsed)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
