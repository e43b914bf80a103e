package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/easybilling/easybilling/pkg/db/pagination"
)

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidID       = errors.New("invalid_id")
	ErrEmptyItems      = errors.New("invoice_requires_items")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrNotFound        = errors.New("invoice_not_found")
	ErrIllegalState    = errors.New("illegal_invoice_state")
	ErrHoldNotFound    = errors.New("held_invoice_not_found")
)

type ItemRequest struct {
	ProductID      string           `json:"product_id"`
	Description    string           `json:"description"`
	Quantity       int64            `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	DiscountType   string           `json:"discount_type"`
	// TaxAmount overrides the resolved tax when set; otherwise the tax
	// resolver computes it from the product's HSN/SAC code.
	TaxAmount *decimal.Decimal `json:"tax_amount,omitempty"`
	TaxRate   decimal.Decimal  `json:"tax_rate"`
}

type PaymentRequest struct {
	Mode      PaymentMode     `json:"mode"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type CreateInvoiceRequest struct {
	CustomerID string        `json:"customer_id"`
	LocationID string        `json:"location_id"`
	Notes      string        `json:"notes"`
	Items      []ItemRequest `json:"items"`
}

type CompleteInvoiceRequest struct {
	Payments []PaymentRequest `json:"payments"`
}

type ReturnInvoiceRequest struct {
	ItemIDs []string `json:"item_ids"`
	Note    string   `json:"note"`
}

type ListInvoiceRequest struct {
	PageToken string
	PageSize  int
	Status    Status
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Complete(ctx context.Context, id string, req CompleteInvoiceRequest) (Invoice, error)
	Cancel(ctx context.Context, id string, note string) (Invoice, error)
	Return(ctx context.Context, id string, req ReturnInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	// Hold stores an unsaved draft request out of band and returns its
	// reference. Resume returns the original request shape, not an Invoice.
	Hold(ctx context.Context, req CreateInvoiceRequest) (string, error)
	Resume(ctx context.Context, ref string) (CreateInvoiceRequest, error)
	DeleteHold(ctx context.Context, ref string) error
}
