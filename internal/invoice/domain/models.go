// Package domain contains the invoice aggregate.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status values for an invoice. CANCELLED and RETURNED are terminal.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusReturned  Status = "RETURNED"
)

// Payment modes.
type PaymentMode string

const (
	PaymentCash   PaymentMode = "CASH"
	PaymentCard   PaymentMode = "CARD"
	PaymentUPI    PaymentMode = "UPI"
	PaymentCredit PaymentMode = "CREDIT"
)

// Invoice is the aggregate root. Monetary fields are recomputed from items
// and payments by CalculateTotals, never written directly.
type Invoice struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	InvoiceNumber  string        `gorm:"type:text;not null;uniqueIndex:ux_invoice_number,composite:tenant_id" json:"invoice_number"`
	CustomerID     *snowflake.ID `json:"customer_id,omitempty"`
	LocationID     snowflake.ID  `gorm:"not null" json:"location_id"`
	Status         Status        `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	Items          []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items"`
	Payments       []Payment     `gorm:"foreignKey:InvoiceID" json:"payments"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2)" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:numeric(14,2)" json:"paid_amount"`
	BalanceAmount  decimal.Decimal `gorm:"type:numeric(14,2)" json:"balance_amount"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy      snowflake.ID    `json:"created_by"`
	CompletedBy    *snowflake.ID   `json:"completed_by,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is owned by exactly one invoice. TaxAmount is filled by the
// tax resolver when the item is built; CalculateLineTotal adds it verbatim.
type InvoiceItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	InvoiceID      snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	ProductID      snowflake.ID    `gorm:"not null" json:"product_id"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2)" json:"discount_amount"`
	DiscountType   string          `gorm:"type:text" json:"discount_type,omitempty"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(7,3)" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax_amount"`
	LineTotal      decimal.Decimal `gorm:"type:numeric(14,2)" json:"line_total"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// Payment is appended to an invoice and never mutated.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Mode      PaymentMode     `gorm:"type:text;not null" json:"mode"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	Reference string          `gorm:"type:text" json:"reference,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// InvoiceSequence backs invoice numbering: one row per tenant per period,
// advanced with a single atomic upsert.
type InvoiceSequence struct {
	TenantID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	Period   string       `gorm:"primaryKey;type:text" json:"period"`
	Value    int64        `gorm:"not null;default:0" json:"value"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// CalculateLineTotal recomputes the line total. Tax is precomputed by the
// caller and added verbatim.
func (i *InvoiceItem) CalculateLineTotal() {
	gross := i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
	net := gross.Sub(i.DiscountAmount)
	i.LineTotal = net.Add(i.TaxAmount).Round(2)
}

// CalculateTotals recomputes all aggregate money fields from the current
// items and payments. Idempotent; insertion order does not matter. A
// negative balance means overpayment and is allowed.
func (inv *Invoice) CalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].CalculateLineTotal()
		subtotal = subtotal.Add(inv.Items[i].LineTotal)
		tax = tax.Add(inv.Items[i].TaxAmount)
		discount = discount.Add(inv.Items[i].DiscountAmount)
	}

	paid := decimal.Zero
	for _, p := range inv.Payments {
		paid = paid.Add(p.Amount)
	}

	inv.Subtotal = subtotal.Round(2)
	inv.TaxAmount = tax.Round(2)
	inv.DiscountAmount = discount.Round(2)
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount).Round(2)
	inv.PaidAmount = paid.Round(2)
	inv.BalanceAmount = inv.TotalAmount.Sub(inv.PaidAmount).Round(2)
}
