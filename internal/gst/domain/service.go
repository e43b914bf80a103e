package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidCode   = errors.New("invalid_code")
	ErrInvalidRate   = errors.New("invalid_rate")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("rate_not_found")
)

type CreateRateRequest struct {
	Code      string          `json:"code"`
	CodeKind  CodeKind        `json:"code_kind"`
	Category  string          `json:"category"`
	CGSTRate  decimal.Decimal `json:"cgst_rate"`
	SGSTRate  decimal.Decimal `json:"sgst_rate"`
	IGSTRate  decimal.Decimal `json:"igst_rate"`
	CessRate  decimal.Decimal `json:"cess_rate"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to"`
	Global    bool            `json:"global"`
}

type ListRatesRequest struct {
	Code     string
	Category string
}

type Service interface {
	// Calculate resolves the active rate for code (HSN tried before SAC) and
	// splits the tax: intra-state purchases get CGST+SGST, inter-state IGST.
	// Cess applies either way.
	Calculate(ctx context.Context, code string, amount decimal.Decimal, supplierState, customerState string) (TaxBreakup, error)

	// CalculateForCategory is the category variant taking an explicit
	// interstate flag instead of deriving it from region strings.
	CalculateForCategory(ctx context.Context, category string, amount decimal.Decimal, interstate bool) (TaxBreakup, error)

	CreateRate(ctx context.Context, req CreateRateRequest) (GstRate, error)
	ListRates(ctx context.Context, req ListRatesRequest) ([]GstRate, error)
	DeleteRate(ctx context.Context, id string) error
}
