package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/gst/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rate *domain.GstRate) error
	// FindActiveByCode returns the rate active at the given time for the code
	// and kind, preferring a tenant override over the global row.
	FindActiveByCode(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, code string, kind domain.CodeKind, at time.Time) (*domain.GstRate, error)
	FindActiveByCategory(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, category string, at time.Time) (*domain.GstRate, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListRatesRequest) ([]domain.GstRate, error)
	Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *domain.GstRate) error {
	return db.WithContext(ctx).Create(rate).Error
}

func (r *repo) FindActiveByCode(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, code string, kind domain.CodeKind, at time.Time) (*domain.GstRate, error) {
	var rates []domain.GstRate
	err := db.WithContext(ctx).
		Where("code = ? AND code_kind = ?", code, kind).
		Where("(tenant_id = ? OR tenant_id IS NULL)", tenantID).
		Where("valid_from <= ?", at).
		Where("(valid_to IS NULL OR valid_to > ?)", at).
		Order("tenant_id IS NULL asc, valid_from desc").
		Limit(1).
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) FindActiveByCategory(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, category string, at time.Time) (*domain.GstRate, error) {
	var rates []domain.GstRate
	err := db.WithContext(ctx).
		Where("category = ?", category).
		Where("(tenant_id = ? OR tenant_id IS NULL)", tenantID).
		Where("valid_from <= ?", at).
		Where("(valid_to IS NULL OR valid_to > ?)", at).
		Order("tenant_id IS NULL asc, valid_from desc").
		Limit(1).
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, nil
	}
	return &rates[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListRatesRequest) ([]domain.GstRate, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.GstRate{}).
		Where("(tenant_id = ? OR tenant_id IS NULL)", tenantID)
	if filter.Code != "" {
		stmt = stmt.Where("code = ?", filter.Code)
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}

	var rates []domain.GstRate
	err := stmt.Order("code asc, valid_from desc").Find(&rates).Error
	return rates, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&domain.GstRate{})
	return res.RowsAffected, res.Error
}
