package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidType        = errors.New("invalid_offer_type")
	ErrInvalidValue       = errors.New("invalid_discount_value")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("offer_not_found")
	ErrUsageLimitExceeded = errors.New("offer_usage_limit_exceeded")
)

type CreateOfferRequest struct {
	Name                  string           `json:"name"`
	Type                  OfferType        `json:"type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MinimumPurchaseAmount *decimal.Decimal `json:"minimum_purchase_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount"`
	ValidFrom             time.Time        `json:"valid_from"`
	ValidTo               *time.Time       `json:"valid_to"`
	UsageLimit            *int64           `json:"usage_limit"`
	Stackable             bool             `json:"stackable"`
	Priority              int              `json:"priority"`
	ProductIDs            []string         `json:"product_ids"`
	CategoryIDs           []string         `json:"category_ids"`
}

// OfferDiscount pairs an offer with the discount it yields for a purchase.
type OfferDiscount struct {
	Offer    Offer           `json:"offer"`
	Discount decimal.Decimal `json:"discount"`
}

type ResolveRequest struct {
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	ProductIDs     []snowflake.ID  `json:"product_ids"`
	CategoryIDs    []snowflake.ID  `json:"category_ids"`
}

type Service interface {
	Create(ctx context.Context, req CreateOfferRequest) (Offer, error)
	GetByID(ctx context.Context, id string) (Offer, error)
	List(ctx context.Context) ([]Offer, error)
	Deactivate(ctx context.Context, id string) error

	// CalculateDiscount evaluates one offer against a purchase without
	// consuming usage.
	CalculateDiscount(ctx context.Context, offerID string, req ResolveRequest) (decimal.Decimal, error)

	// ApplyOffer computes the discount and consumes one usage atomically;
	// exhausted offers fail with ErrUsageLimitExceeded.
	ApplyOffer(ctx context.Context, offerID string, req ResolveRequest) (decimal.Decimal, error)

	// BestOffers selects the applicable offer set: a single best
	// non-stackable offer when any qualifies, otherwise all qualifying
	// stackable offers sorted by descending priority.
	BestOffers(ctx context.Context, req ResolveRequest) ([]OfferDiscount, error)
}
