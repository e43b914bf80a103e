package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/offer/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, offer *domain.Offer) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Offer, error)
	ListActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Offer, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Offer, error)
	SetStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.OfferStatus) (int64, error)
	// ConsumeUsage increments usage_count in a single conditional statement;
	// zero rows affected means the limit is exhausted.
	ConsumeUsage(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, now time.Time) (int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, offer *domain.Offer) error {
	return db.WithContext(ctx).Create(offer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Offer, error) {
	var offer domain.Offer
	err := db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&offer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("tenant_id = ? AND status = ?", tenantID, domain.OfferStatusActive).
		Order("created_at asc, id asc").
		Find(&offers).Error
	return offers, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("tenant_id = ?", tenantID).
		Order("created_at desc, id desc").
		Find(&offers).Error
	return offers, err
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.OfferStatus) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("status", status)
	return res.RowsAffected, res.Error
}

func (r *repo) ConsumeUsage(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE offers
		 SET usage_count = usage_count + 1, updated_at = ?
		 WHERE tenant_id = ? AND id = ?
		   AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		now, tenantID, id,
	)
	return res.RowsAffected, res.Error
}
