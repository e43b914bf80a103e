package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/tenant/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error)
	List(ctx context.Context, db *gorm.DB) ([]domain.Tenant, error)

	InsertConfig(ctx context.Context, db *gorm.DB, cfg *domain.TenantConfig) error
	UpdateConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key, value string) (int64, error)
	FindConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (*domain.TenantConfig, error)
	ListConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.TenantConfig, error)
	DeleteConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (int64, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Create(tenant).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	err := db.WithContext(ctx).Order("created_at asc").Find(&tenants).Error
	return tenants, err
}

func (r *repo) InsertConfig(ctx context.Context, db *gorm.DB, cfg *domain.TenantConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) UpdateConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key, value string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.TenantConfig{}).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		Update("value", value)
	return res.RowsAffected, res.Error
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (*domain.TenantConfig, error) {
	var cfg domain.TenantConfig
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) ListConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.TenantConfig, error) {
	var cfgs []domain.TenantConfig
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("key asc").
		Find(&cfgs).Error
	return cfgs, err
}

func (r *repo) DeleteConfig(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, key string) (int64, error) {
	res := db.WithContext(ctx).
		Where("tenant_id = ? AND key = ?", tenantID, key).
		Delete(&domain.TenantConfig{})
	return res.RowsAffected, res.Error
}
