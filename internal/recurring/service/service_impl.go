package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/internal/recurring/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invoices invoicedomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices invoicedomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("recurring.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateScheduleRequest) (domain.RecurringInvoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.RecurringInvoice{}, domain.ErrInvalidTenant
	}
	if !req.Amount.IsPositive() {
		return domain.RecurringInvoice{}, domain.ErrInvalidAmount
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return domain.RecurringInvoice{}, domain.ErrInvalidID
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		return domain.RecurringInvoice{}, domain.ErrInvalidID
	}
	locationID, err := snowflake.ParseString(strings.TrimSpace(req.LocationID))
	if err != nil {
		return domain.RecurringInvoice{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}
	if req.EndDate != nil && req.EndDate.Before(start) {
		return domain.RecurringInvoice{}, domain.ErrInvalidSchedule
	}

	schedule := domain.RecurringInvoice{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		CustomerID:      customerID,
		ProductID:       productID,
		LocationID:      locationID,
		Frequency:       req.Frequency,
		Amount:          req.Amount,
		StartDate:       start,
		EndDate:         req.EndDate,
		NextInvoiceDate: start,
		MaxInvoices:     req.MaxInvoices,
		Active:          true,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.db.WithContext(ctx).Create(&schedule).Error; err != nil {
		return domain.RecurringInvoice{}, err
	}
	return schedule, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.RecurringInvoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.RecurringInvoice{}, domain.ErrInvalidTenant
	}
	scheduleID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.RecurringInvoice{}, domain.ErrInvalidID
	}

	var schedule domain.RecurringInvoice
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, scheduleID).
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RecurringInvoice{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RecurringInvoice{}, err
	}
	return schedule, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]domain.RecurringInvoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}

	stmt := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var schedules []domain.RecurringInvoice
	err := stmt.Order("next_invoice_date asc").Find(&schedules).Error
	return schedules, err
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	schedule, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.deactivate(ctx, &schedule)
}

// Generate runs the two terminal checks before touching the invoice path:
// a capped-out or ended schedule is deactivated and yields nothing.
func (s *service) Generate(ctx context.Context, schedule *domain.RecurringInvoice) (*invoicedomain.Invoice, error) {
	today := s.clock.Now()

	if schedule.MaxInvoices != nil && schedule.InvoicesGenerated >= *schedule.MaxInvoices {
		s.log.Info("recurring schedule reached max invoices, deactivating",
			zap.Int64("schedule_id", int64(schedule.ID)))
		return nil, s.deactivate(ctx, schedule)
	}
	if schedule.EndDate != nil && today.After(*schedule.EndDate) {
		s.log.Info("recurring schedule past end date, deactivating",
			zap.Int64("schedule_id", int64(schedule.ID)))
		return nil, s.deactivate(ctx, schedule)
	}

	noTax := decimal.Zero
	invoice, err := s.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: schedule.CustomerID.String(),
		LocationID: schedule.LocationID.String(),
		Notes:      fmt.Sprintf("recurring %s schedule %s", strings.ToLower(string(schedule.Frequency)), schedule.ID),
		Items: []invoicedomain.ItemRequest{
			{
				ProductID: schedule.ProductID.String(),
				Quantity:  1,
				UnitPrice: schedule.Amount,
				TaxAmount: &noTax,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	schedule.InvoicesGenerated++
	schedule.LastInvoiceDate = &today
	schedule.NextInvoiceDate = domain.NextDate(schedule.Frequency, schedule.NextInvoiceDate)
	schedule.UpdatedAt = today
	if err := s.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *service) ProcessDue(ctx context.Context) error {
	today := s.clock.Now()

	var due []domain.RecurringInvoice
	err := s.db.WithContext(ctx).
		Where("active = ? AND next_invoice_date <= ?", true, today).
		Order("next_invoice_date asc").
		Find(&due).Error
	if err != nil {
		return err
	}

	for i := range due {
		schedule := &due[i]
		scheduleCtx := tenantctx.WithTenantID(ctx, schedule.TenantID)
		if _, err := s.Generate(scheduleCtx, schedule); err != nil {
			s.log.Error("generate recurring invoice",
				zap.Int64("schedule_id", int64(schedule.ID)),
				zap.Error(err))
		}
	}
	return nil
}

func (s *service) deactivate(ctx context.Context, schedule *domain.RecurringInvoice) error {
	schedule.Active = false
	schedule.UpdatedAt = s.clock.Now()
	return s.db.WithContext(ctx).Model(schedule).Updates(map[string]any{
		"active":     false,
		"updated_at": schedule.UpdatedAt,
	}).Error
}
