// Package domain contains credit notes and their approval workflow.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status values. APPLIED is terminal; everything else can be cancelled.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusIssued          Status = "ISSUED"
	StatusApplied         Status = "APPLIED"
	StatusCancelled       Status = "CANCELLED"
)

// ApplicationMethod selects what happens when an issued note is applied.
type ApplicationMethod string

const (
	MethodReduceInvoice ApplicationMethod = "REDUCE_INVOICE"
	MethodRefund        ApplicationMethod = "REFUND"
	MethodStoreCredit   ApplicationMethod = "STORE_CREDIT"
)

// CreditNote references a source invoice and mirrors its lines.
type CreditNote struct {
	ID          snowflake.ID     `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID     `gorm:"not null;index" json:"tenant_id"`
	InvoiceID   snowflake.ID     `gorm:"not null;index" json:"invoice_id"`
	LocationID  snowflake.ID     `gorm:"not null" json:"location_id"`
	Status      Status           `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	Reason      string           `gorm:"type:text" json:"reason,omitempty"`
	Restock     bool             `gorm:"not null;default:false" json:"restock"`
	Items       []CreditNoteItem `gorm:"foreignKey:CreditNoteID" json:"items"`
	Subtotal    decimal.Decimal  `gorm:"type:numeric(14,2)" json:"subtotal"`
	TaxAmount   decimal.Decimal  `gorm:"type:numeric(14,2)" json:"tax_amount"`
	TotalAmount decimal.Decimal  `gorm:"type:numeric(14,2)" json:"total_amount"`
	ApprovedBy  *snowflake.ID    `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	IssuedAt    *time.Time       `json:"issued_at,omitempty"`
	AppliedAt   *time.Time       `json:"applied_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditNote) TableName() string { return "credit_notes" }

// CreditNoteItem mirrors an invoice line; Restock marks it for return to
// stock when the note is issued.
type CreditNoteItem struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	CreditNoteID  snowflake.ID    `gorm:"not null;index" json:"credit_note_id"`
	ProductID     snowflake.ID    `gorm:"not null" json:"product_id"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	Discount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount"`
	TaxPercentage decimal.Decimal `gorm:"type:numeric(7,3)" json:"tax_percentage"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(14,2)" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	Total         decimal.Decimal `gorm:"type:numeric(14,2)" json:"total"`
	Restock       bool            `gorm:"not null;default:false" json:"restock"`
}

// TableName sets the database table name.
func (CreditNoteItem) TableName() string { return "credit_note_items" }

var hundred = decimal.NewFromInt(100)

// CalculateTotals fills per-item and note-level amounts.
func (n *CreditNote) CalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range n.Items {
		item := &n.Items[i]
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(item.Discount).Round(2)
		item.TaxAmount = item.Subtotal.Mul(item.TaxPercentage).Div(hundred).Round(2)
		item.Total = item.Subtotal.Add(item.TaxAmount).Round(2)
		subtotal = subtotal.Add(item.Subtotal)
		tax = tax.Add(item.TaxAmount)
	}
	n.Subtotal = subtotal.Round(2)
	n.TaxAmount = tax.Round(2)
	n.TotalAmount = n.Subtotal.Add(n.TaxAmount).Round(2)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidID     = errors.New("invalid_id")
	ErrEmptyItems    = errors.New("credit_note_requires_items")
	ErrInvalidMethod = errors.New("unknown_application_method")
	ErrNotFound      = errors.New("credit_note_not_found")
	ErrIllegalState  = errors.New("illegal_credit_note_state")
)

type ItemRequest struct {
	ProductID     string          `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Discount      decimal.Decimal `json:"discount"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	Restock       bool            `json:"restock"`
}

type CreateCreditNoteRequest struct {
	InvoiceID  string        `json:"invoice_id"`
	LocationID string        `json:"location_id"`
	Reason     string        `json:"reason"`
	Restock    bool          `json:"restock"`
	Items      []ItemRequest `json:"items"`
}

type Service interface {
	Create(ctx context.Context, req CreateCreditNoteRequest) (CreditNote, error)
	GetByID(ctx context.Context, id string) (CreditNote, error)
	List(ctx context.Context, status Status) ([]CreditNote, error)

	Submit(ctx context.Context, id string) (CreditNote, error)
	Approve(ctx context.Context, id string) (CreditNote, error)
	Issue(ctx context.Context, id string) (CreditNote, error)
	Apply(ctx context.Context, id string, method ApplicationMethod) (CreditNote, error)
	Cancel(ctx context.Context, id string) (CreditNote, error)
}
