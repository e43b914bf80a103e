// Package domain contains persistence models for the product catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Category groups products for offers and tax categories.
type Category struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Category) TableName() string { return "categories" }

// Product is a sellable item. HSNCode/SACCode drive GST resolution.
type Product struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID    `gorm:"not null;uniqueIndex:ux_product_sku" json:"tenant_id"`
	SKU        string          `gorm:"type:text;not null;uniqueIndex:ux_product_sku" json:"sku"`
	Name       string          `gorm:"type:text;not null" json:"name"`
	HSNCode    string          `gorm:"type:text" json:"hsn_code,omitempty"`
	SACCode    string          `gorm:"type:text" json:"sac_code,omitempty"`
	CategoryID *snowflake.ID   `gorm:"index" json:"category_id,omitempty"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	Active     bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }
