// Package domain contains the quotation model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
)

// Status values for a quote.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
)

// Quote is a priced proposal that can be converted into an invoice.
type Quote struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	CustomerID     *snowflake.ID   `json:"customer_id,omitempty"`
	LocationID     snowflake.ID    `gorm:"not null" json:"location_id"`
	Status         Status          `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	Items          []QuoteItem     `gorm:"foreignKey:QuoteID" json:"items"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2)" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	ValidUntil     time.Time       `gorm:"not null" json:"valid_until"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	InvoiceID      *snowflake.ID   `json:"invoice_id,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Quote) TableName() string { return "quotes" }

// QuoteItem mirrors an invoice line and shares its arithmetic.
type QuoteItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	QuoteID        snowflake.ID    `gorm:"not null;index" json:"quote_id"`
	ProductID      snowflake.ID    `gorm:"not null" json:"product_id"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	LineTotal      decimal.Decimal `gorm:"type:numeric(14,2)" json:"line_total"`
}

// TableName sets the database table name.
func (QuoteItem) TableName() string { return "quote_items" }

// CalculateTotals uses the invoice arithmetic on quote lines.
func (q *Quote) CalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero
	for i := range q.Items {
		item := &q.Items[i]
		gross := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity))
		item.LineTotal = gross.Sub(item.DiscountAmount).Add(item.TaxAmount).Round(2)
		subtotal = subtotal.Add(item.LineTotal)
		tax = tax.Add(item.TaxAmount)
		discount = discount.Add(item.DiscountAmount)
	}
	q.Subtotal = subtotal.Round(2)
	q.TaxAmount = tax.Round(2)
	q.DiscountAmount = discount.Round(2)
	q.TotalAmount = q.Subtotal.Add(q.TaxAmount).Sub(q.DiscountAmount).Round(2)
}

// ExpiredAt reports whether the quote's validity has lapsed at t.
func (q *Quote) ExpiredAt(t time.Time) bool {
	return t.After(q.ValidUntil)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidID     = errors.New("invalid_id")
	ErrEmptyItems    = errors.New("quote_requires_items")
	ErrNotFound      = errors.New("quote_not_found")
	ErrIllegalState  = errors.New("illegal_quote_state")
	ErrExpired       = errors.New("quote_expired")
)

type CreateQuoteRequest struct {
	CustomerID string                      `json:"customer_id"`
	LocationID string                      `json:"location_id"`
	ValidUntil time.Time                   `json:"valid_until"`
	Notes      string                      `json:"notes"`
	Items      []invoicedomain.ItemRequest `json:"items"`
}

type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (Quote, error)
	GetByID(ctx context.Context, id string) (Quote, error)
	List(ctx context.Context, status Status) ([]Quote, error)
	MarkSent(ctx context.Context, id string) (Quote, error)

	// Accept converts the quote into a draft invoice. Expired quotes are
	// rejected and flipped to EXPIRED.
	Accept(ctx context.Context, id string) (invoicedomain.Invoice, error)
}
