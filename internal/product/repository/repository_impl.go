package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/product/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Product, error)
	FindBySKU(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, sku string) (*domain.Product, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Product, error)
	SetActive(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, active bool) (int64, error)

	InsertCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error
	ListCategories(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Category, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, sku string) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Product, error) {
	var products []domain.Product
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name asc").
		Find(&products).Error
	return products, err
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, active bool) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("active", active)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.Category, error) {
	var categories []domain.Category
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name asc").
		Find(&categories).Error
	return categories, err
}
