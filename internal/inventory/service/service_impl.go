package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/inventory/domain"
	"github.com/easybilling/easybilling/internal/inventory/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log,
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *service) CheckAvailability(ctx context.Context, productID, locationID snowflake.ID, qty int64) (bool, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return false, domain.ErrInvalidTenant
	}
	if qty <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	level, err := s.repo.GetLevel(ctx, s.db, tenantID, productID, locationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return level.Quantity >= qty, nil
}

func (s *service) Deduct(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string, allowNegative bool) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if allowNegative {
			if err := s.increment(ctx, tx, tenantID, productID, locationID, -qty); err != nil {
				return err
			}
		} else {
			affected, err := s.repo.DeductGuarded(ctx, tx, tenantID, productID, locationID, qty)
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrInsufficientStock
			}
		}
		return s.record(ctx, tx, tenantID, productID, locationID, domain.MovementDeduct, -qty, reference)
	})
}

func (s *service) Reverse(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string) error {
	return s.add(ctx, productID, locationID, qty, domain.MovementReverse, reference)
}

func (s *service) Restock(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string) error {
	return s.add(ctx, productID, locationID, qty, domain.MovementRestock, reference)
}

func (s *service) Adjust(ctx context.Context, productID, locationID snowflake.ID, delta int64, reference string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}
	if delta == 0 {
		return domain.ErrInvalidQuantity
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.increment(ctx, tx, tenantID, productID, locationID, delta); err != nil {
			return err
		}
		return s.record(ctx, tx, tenantID, productID, locationID, domain.MovementAdjust, delta, reference)
	})
}

func (s *service) GetLevel(ctx context.Context, productID, locationID snowflake.ID) (domain.StockLevel, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.StockLevel{}, domain.ErrInvalidTenant
	}
	return s.repo.GetLevel(ctx, s.db, tenantID, productID, locationID)
}

func (s *service) ListMovements(ctx context.Context, productID snowflake.ID, limit int) ([]domain.StockMovement, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.ListMovements(ctx, s.db, tenantID, productID, limit)
}

func (s *service) add(ctx context.Context, productID, locationID snowflake.ID, qty int64, kind domain.MovementKind, reference string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.increment(ctx, tx, tenantID, productID, locationID, qty); err != nil {
			return err
		}
		return s.record(ctx, tx, tenantID, productID, locationID, kind, qty, reference)
	})
}

func (s *service) increment(ctx context.Context, tx *gorm.DB, tenantID, productID, locationID snowflake.ID, delta int64) error {
	level := domain.StockLevel{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   delta,
	}
	return s.repo.Increment(ctx, tx, level, delta)
}

func (s *service) record(ctx context.Context, tx *gorm.DB, tenantID, productID, locationID snowflake.ID, kind domain.MovementKind, qty int64, reference string) error {
	return s.repo.AddMovement(ctx, tx, &domain.StockMovement{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ProductID:  productID,
		LocationID: locationID,
		Kind:       kind,
		Quantity:   qty,
		Reference:  reference,
		CreatedAt:  s.clock.Now(),
	})
}
