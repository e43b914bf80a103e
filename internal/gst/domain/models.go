// Package domain contains GST rate models and the tax breakup value object.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CodeKind distinguishes goods (HSN) from services (SAC) classifications.
type CodeKind string

const (
	CodeKindHSN CodeKind = "HSN"
	CodeKindSAC CodeKind = "SAC"
)

// GstRate holds the tax percentages for an HSN/SAC code or tax category.
// A nil TenantID marks a global rate; a tenant-specific row overrides it.
// igst_rate == cgst_rate + sgst_rate is the expected reconciliation but is
// not enforced at write time.
type GstRate struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID  *snowflake.ID   `gorm:"index" json:"tenant_id,omitempty"`
	Code      string          `gorm:"type:text;not null;index" json:"code"`
	CodeKind  CodeKind        `gorm:"type:text;not null" json:"code_kind"`
	Category  string          `gorm:"type:text;index" json:"category,omitempty"`
	CGSTRate  decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"cgst_rate"`
	SGSTRate  decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"sgst_rate"`
	IGSTRate  decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"igst_rate"`
	CessRate  decimal.Decimal `gorm:"type:numeric(6,3);not null;default:0" json:"cess_rate"`
	ValidFrom time.Time       `gorm:"not null" json:"valid_from"`
	ValidTo   *time.Time      `gorm:"" json:"valid_to,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (GstRate) TableName() string { return "gst_rates" }

// ActiveAt reports whether the rate applies at the given instant.
func (r GstRate) ActiveAt(t time.Time) bool {
	if t.Before(r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && !t.Before(*r.ValidTo) {
		return false
	}
	return true
}

// TaxBreakup is the result of a GST calculation, all components rounded
// half-up to two decimals.
type TaxBreakup struct {
	CGST     decimal.Decimal `json:"cgst"`
	SGST     decimal.Decimal `json:"sgst"`
	IGST     decimal.Decimal `json:"igst"`
	Cess     decimal.Decimal `json:"cess"`
	TotalTax decimal.Decimal `json:"total_tax"`
}
