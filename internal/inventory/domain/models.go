// Package domain contains stock level and movement models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// StockLevel tracks the on-hand quantity of a product at a location.
type StockLevel struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:ux_stock_level" json:"tenant_id"`
	ProductID snowflake.ID `gorm:"not null;uniqueIndex:ux_stock_level" json:"product_id"`
	LocationID snowflake.ID `gorm:"not null;uniqueIndex:ux_stock_level" json:"location_id"`
	Quantity  int64        `gorm:"not null;default:0" json:"quantity"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StockLevel) TableName() string { return "stock_levels" }

// MovementKind classifies a stock change.
type MovementKind string

const (
	MovementDeduct  MovementKind = "DEDUCT"
	MovementReverse MovementKind = "REVERSE"
	MovementRestock MovementKind = "RESTOCK"
	MovementAdjust  MovementKind = "ADJUST"
)

// StockMovement is an append-only audit row for every stock change.
type StockMovement struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	ProductID  snowflake.ID `gorm:"not null;index" json:"product_id"`
	LocationID snowflake.ID `gorm:"not null" json:"location_id"`
	Kind       MovementKind `gorm:"type:text;not null" json:"kind"`
	Quantity   int64        `gorm:"not null" json:"quantity"`
	Reference  string       `gorm:"type:text" json:"reference,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (StockMovement) TableName() string { return "stock_movements" }

var (
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInsufficientStock  = errors.New("insufficient_stock")
)

type Service interface {
	// CheckAvailability reports whether at least qty units are on hand.
	CheckAvailability(ctx context.Context, productID, locationID snowflake.ID, qty int64) (bool, error)

	// Deduct removes stock with a conditional single-statement decrement.
	// allowNegative skips the on-hand guard; the sale-completion path uses it
	// because financial transactions never block on inventory sync.
	Deduct(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string, allowNegative bool) error

	// Reverse returns previously deducted stock.
	Reverse(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string) error

	// Restock increases stock from a credit-note return.
	Restock(ctx context.Context, productID, locationID snowflake.ID, qty int64, reference string) error

	// Adjust applies a signed correction.
	Adjust(ctx context.Context, productID, locationID snowflake.ID, delta int64, reference string) error

	GetLevel(ctx context.Context, productID, locationID snowflake.ID) (StockLevel, error)
	ListMovements(ctx context.Context, productID snowflake.ID, limit int) ([]StockMovement, error)
}
