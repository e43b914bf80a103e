// Package domain contains recurring invoice schedules.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
)

// Frequency of a recurring schedule.
type Frequency string

const (
	FrequencyDaily        Frequency = "DAILY"
	FrequencyWeekly       Frequency = "WEEKLY"
	FrequencyBiweekly     Frequency = "BIWEEKLY"
	FrequencyMonthly      Frequency = "MONTHLY"
	FrequencyQuarterly    Frequency = "QUARTERLY"
	FrequencySemiannually Frequency = "SEMIANNUALLY"
	FrequencyAnnually     Frequency = "ANNUALLY"
)

// NextDate advances from by exactly one period. Unrecognized frequencies
// default to one month.
func NextDate(freq Frequency, from time.Time) time.Time {
	switch freq {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencySemiannually:
		return from.AddDate(0, 6, 0)
	case FrequencyAnnually:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// RecurringInvoice drives periodic invoice generation for a customer.
type RecurringInvoice struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID          snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	CustomerID        snowflake.ID    `gorm:"not null" json:"customer_id"`
	ProductID         snowflake.ID    `gorm:"not null" json:"product_id"`
	LocationID        snowflake.ID    `gorm:"not null" json:"location_id"`
	Frequency         Frequency       `gorm:"type:text;not null" json:"frequency"`
	Amount            decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	StartDate         time.Time       `gorm:"not null" json:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	NextInvoiceDate   time.Time       `gorm:"not null;index" json:"next_invoice_date"`
	LastInvoiceDate   *time.Time      `json:"last_invoice_date,omitempty"`
	InvoicesGenerated int             `gorm:"not null;default:0" json:"invoices_generated"`
	MaxInvoices       *int            `json:"max_invoices,omitempty"`
	Active            bool            `gorm:"not null;default:true;index" json:"active"`
	Notes             string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RecurringInvoice) TableName() string { return "recurring_invoices" }

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidSchedule = errors.New("invalid_schedule")
	ErrNotFound        = errors.New("schedule_not_found")
)

type CreateScheduleRequest struct {
	CustomerID  string          `json:"customer_id"`
	ProductID   string          `json:"product_id"`
	LocationID  string          `json:"location_id"`
	Frequency   Frequency       `json:"frequency"`
	Amount      decimal.Decimal `json:"amount"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	MaxInvoices *int            `json:"max_invoices"`
	Notes       string          `json:"notes"`
}

type Service interface {
	Create(ctx context.Context, req CreateScheduleRequest) (RecurringInvoice, error)
	GetByID(ctx context.Context, id string) (RecurringInvoice, error)
	List(ctx context.Context, activeOnly bool) ([]RecurringInvoice, error)
	Deactivate(ctx context.Context, id string) error

	// Generate produces the schedule's next invoice, or (nil, nil) after
	// deactivating a schedule that hit its max-invoices cap or end date.
	Generate(ctx context.Context, schedule *RecurringInvoice) (*invoicedomain.Invoice, error)

	// ProcessDue generates invoices for every active schedule whose next
	// date has arrived. Per-schedule failures are logged, not fatal.
	ProcessDue(ctx context.Context) error
}
