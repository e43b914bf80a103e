package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/inventory/domain"
)

type Repository interface {
	GetLevel(ctx context.Context, db *gorm.DB, tenantID, productID, locationID snowflake.ID) (domain.StockLevel, error)
	DeductGuarded(ctx context.Context, db *gorm.DB, tenantID, productID, locationID snowflake.ID, qty int64) (int64, error)
	Increment(ctx context.Context, db *gorm.DB, level domain.StockLevel, delta int64) error
	AddMovement(ctx context.Context, db *gorm.DB, movement *domain.StockMovement) error
	ListMovements(ctx context.Context, db *gorm.DB, tenantID, productID snowflake.ID, limit int) ([]domain.StockMovement, error)
}

func New() Repository { return &repo{} }

type repo struct{}

func (r *repo) GetLevel(ctx context.Context, db *gorm.DB, tenantID, productID, locationID snowflake.ID) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND location_id = ?", tenantID, productID, locationID).
		First(&level).Error
	return level, err
}

// DeductGuarded decrements only when enough stock is on hand. Returns the
// number of rows affected; zero means the guard rejected the decrement.
func (r *repo) DeductGuarded(ctx context.Context, db *gorm.DB, tenantID, productID, locationID snowflake.ID, qty int64) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE stock_levels
		 SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND product_id = ? AND location_id = ? AND quantity >= ?`,
		qty, tenantID, productID, locationID, qty)
	return res.RowsAffected, res.Error
}

// Increment applies a signed delta, creating the level row when absent.
func (r *repo) Increment(ctx context.Context, db *gorm.DB, level domain.StockLevel, delta int64) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_levels (id, tenant_id, product_id, location_id, quantity, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (tenant_id, product_id, location_id)
		 DO UPDATE SET quantity = stock_levels.quantity + ?, updated_at = CURRENT_TIMESTAMP`,
		level.ID, level.TenantID, level.ProductID, level.LocationID, delta, delta).Error
}

func (r *repo) AddMovement(ctx context.Context, db *gorm.DB, movement *domain.StockMovement) error {
	return db.WithContext(ctx).Create(movement).Error
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, tenantID, productID snowflake.ID, limit int) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	q := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&movements).Error
	return movements, err
}
