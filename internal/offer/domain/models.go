// Package domain contains promotional offer models and the discount
// calculation rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OfferType discriminates how the discount value is interpreted.
type OfferType string

const (
	OfferTypePercentage      OfferType = "PERCENTAGE_DISCOUNT"
	OfferTypeFixedAmount     OfferType = "FIXED_AMOUNT_DISCOUNT"
	OfferTypeMinimumPurchase OfferType = "MINIMUM_PURCHASE"
)

// OfferStatus marks whether an offer participates in resolution.
type OfferStatus string

const (
	OfferStatusActive   OfferStatus = "ACTIVE"
	OfferStatusInactive OfferStatus = "INACTIVE"
)

// Offer is a promotional rule. Offers without product/category restrictions
// apply universally; restricted offers apply when at least one supplied
// product or category id intersects the allow-lists.
type Offer struct {
	ID                    snowflake.ID     `gorm:"primaryKey" json:"id"`
	TenantID              snowflake.ID     `gorm:"not null;index" json:"tenant_id"`
	Name                  string           `gorm:"type:text;not null" json:"name"`
	Type                  OfferType        `gorm:"type:text;not null" json:"type"`
	Status                OfferStatus      `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	DiscountValue         decimal.Decimal  `gorm:"type:numeric(18,2);not null" json:"discount_value"`
	MinimumPurchaseAmount *decimal.Decimal `gorm:"type:numeric(18,2)" json:"minimum_purchase_amount,omitempty"`
	MaximumDiscountAmount *decimal.Decimal `gorm:"type:numeric(18,2)" json:"maximum_discount_amount,omitempty"`
	ValidFrom             time.Time        `gorm:"not null" json:"valid_from"`
	ValidTo               *time.Time       `gorm:"" json:"valid_to,omitempty"`
	UsageLimit            *int64           `gorm:"" json:"usage_limit,omitempty"`
	UsageCount            int64            `gorm:"not null;default:0" json:"usage_count"`
	Stackable             bool             `gorm:"not null;default:false" json:"stackable"`
	Priority              int              `gorm:"not null;default:0" json:"priority"`
	Products              []OfferProduct   `gorm:"foreignKey:OfferID" json:"products,omitempty"`
	Categories            []OfferCategory  `gorm:"foreignKey:OfferID" json:"categories,omitempty"`
	CreatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Offer) TableName() string { return "offers" }

// OfferProduct is an allow-list row binding an offer to a product.
type OfferProduct struct {
	OfferID   snowflake.ID `gorm:"primaryKey" json:"offer_id"`
	ProductID snowflake.ID `gorm:"primaryKey" json:"product_id"`
}

// TableName sets the database table name.
func (OfferProduct) TableName() string { return "offer_products" }

// OfferCategory is an allow-list row binding an offer to a category.
type OfferCategory struct {
	OfferID    snowflake.ID `gorm:"primaryKey" json:"offer_id"`
	CategoryID snowflake.ID `gorm:"primaryKey" json:"category_id"`
}

// TableName sets the database table name.
func (OfferCategory) TableName() string { return "offer_categories" }

var hundred = decimal.NewFromInt(100)

// ActiveAt reports whether the offer is ACTIVE inside its validity window.
func (o *Offer) ActiveAt(t time.Time) bool {
	if o.Status != OfferStatusActive {
		return false
	}
	if t.Before(o.ValidFrom) {
		return false
	}
	if o.ValidTo != nil && !t.Before(*o.ValidTo) {
		return false
	}
	return true
}

// AppliesTo reports whether the offer covers the supplied products or
// categories. Either list intersecting qualifies; no restriction means the
// offer applies universally.
func (o *Offer) AppliesTo(productIDs, categoryIDs []snowflake.ID) bool {
	if len(o.Products) == 0 && len(o.Categories) == 0 {
		return true
	}
	for _, allowed := range o.Products {
		for _, id := range productIDs {
			if allowed.ProductID == id {
				return true
			}
		}
	}
	for _, allowed := range o.Categories {
		for _, id := range categoryIDs {
			if allowed.CategoryID == id {
				return true
			}
		}
	}
	return false
}

// DiscountFor computes the discount this offer produces for a purchase at
// the given instant. Non-applicable offers yield zero rather than an error.
func (o *Offer) DiscountFor(amount decimal.Decimal, productIDs, categoryIDs []snowflake.ID, at time.Time) decimal.Decimal {
	if !o.ActiveAt(at) {
		return decimal.Zero
	}
	if o.MinimumPurchaseAmount != nil && amount.LessThan(*o.MinimumPurchaseAmount) {
		return decimal.Zero
	}
	if !o.AppliesTo(productIDs, categoryIDs) {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch o.Type {
	case OfferTypePercentage:
		discount = amount.Mul(o.DiscountValue).Div(hundred).Round(2)
	case OfferTypeFixedAmount:
		discount = o.DiscountValue
	case OfferTypeMinimumPurchase:
		// Minimum-purchase gate already passed above.
		discount = o.DiscountValue
	default:
		return decimal.Zero
	}

	if o.MaximumDiscountAmount != nil && discount.GreaterThan(*o.MaximumDiscountAmount) {
		discount = *o.MaximumDiscountAmount
	}
	return discount
}
