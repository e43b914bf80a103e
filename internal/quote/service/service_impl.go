package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	customerdomain "github.com/easybilling/easybilling/internal/customer/domain"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/internal/quote/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Customers customerdomain.Service
	Invoices  invoicedomain.Service
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	customers customerdomain.Service
	invoices  invoicedomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("quote.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		customers: p.Customers,
		invoices:  p.Invoices,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateQuoteRequest) (domain.Quote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.Quote{}, domain.ErrInvalidTenant
	}
	if len(req.Items) == 0 {
		return domain.Quote{}, domain.ErrEmptyItems
	}

	locationID, err := snowflake.ParseString(strings.TrimSpace(req.LocationID))
	if err != nil {
		return domain.Quote{}, domain.ErrInvalidID
	}

	var customerID *snowflake.ID
	if strings.TrimSpace(req.CustomerID) != "" {
		customer, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Quote{}, err
		}
		customerID = &customer.ID
	}

	now := s.clock.Now()
	quoteID := s.genID.Generate()

	items := make([]domain.QuoteItem, 0, len(req.Items))
	for _, ir := range req.Items {
		if ir.Quantity <= 0 {
			return domain.Quote{}, invoicedomain.ErrInvalidQuantity
		}
		productID, err := snowflake.ParseString(strings.TrimSpace(ir.ProductID))
		if err != nil {
			return domain.Quote{}, domain.ErrInvalidID
		}
		item := domain.QuoteItem{
			ID:             s.genID.Generate(),
			TenantID:       tenantID,
			QuoteID:        quoteID,
			ProductID:      productID,
			Description:    ir.Description,
			Quantity:       ir.Quantity,
			UnitPrice:      ir.UnitPrice,
			DiscountAmount: ir.DiscountAmount,
		}
		if ir.TaxAmount != nil {
			item.TaxAmount = *ir.TaxAmount
		}
		items = append(items, item)
	}

	validUntil := req.ValidUntil
	if validUntil.IsZero() {
		validUntil = now.AddDate(0, 0, 30)
	}

	quote := domain.Quote{
		ID:         quoteID,
		TenantID:   tenantID,
		CustomerID: customerID,
		LocationID: locationID,
		Status:     domain.StatusDraft,
		Items:      items,
		ValidUntil: validUntil,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	quote.CalculateTotals()

	if err := s.db.WithContext(ctx).Create(&quote).Error; err != nil {
		return domain.Quote{}, err
	}
	return quote, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	return *quote, nil
}

func (s *service) List(ctx context.Context, status domain.Status) ([]domain.Quote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}

	stmt := s.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ?", tenantID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var quotes []domain.Quote
	err := stmt.Order("created_at desc").Find(&quotes).Error
	return quotes, err
}

func (s *service) MarkSent(ctx context.Context, id string) (domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if quote.Status != domain.StatusDraft {
		return domain.Quote{}, domain.ErrIllegalState
	}

	quote.Status = domain.StatusSent
	quote.UpdatedAt = s.clock.Now()
	if err := s.save(ctx, quote); err != nil {
		return domain.Quote{}, err
	}
	return *quote, nil
}

func (s *service) Accept(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if quote.Status != domain.StatusDraft && quote.Status != domain.StatusSent {
		return invoicedomain.Invoice{}, domain.ErrIllegalState
	}

	now := s.clock.Now()
	if quote.ExpiredAt(now) {
		quote.Status = domain.StatusExpired
		quote.UpdatedAt = now
		if err := s.save(ctx, quote); err != nil {
			s.log.Warn("mark quote expired", zap.Error(err))
		}
		return invoicedomain.Invoice{}, domain.ErrExpired
	}

	req := invoicedomain.CreateInvoiceRequest{
		LocationID: quote.LocationID.String(),
		Notes:      quote.Notes,
	}
	if quote.CustomerID != nil {
		req.CustomerID = quote.CustomerID.String()
	}
	for _, item := range quote.Items {
		tax := item.TaxAmount
		req.Items = append(req.Items, invoicedomain.ItemRequest{
			ProductID:      item.ProductID.String(),
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			TaxAmount:      &tax,
		})
	}

	invoice, err := s.invoices.Create(ctx, req)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	quote.Status = domain.StatusAccepted
	quote.InvoiceID = &invoice.ID
	quote.UpdatedAt = now
	if err := s.save(ctx, quote); err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("quote accepted",
		zap.Int64("quote_id", int64(quote.ID)),
		zap.String("invoice_number", invoice.InvoiceNumber))
	return invoice, nil
}

func (s *service) load(ctx context.Context, id string) (*domain.Quote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}
	quoteID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var quote domain.Quote
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, quoteID).
		First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *service) save(ctx context.Context, quote *domain.Quote) error {
	return s.db.WithContext(ctx).Omit("Items").Save(quote).Error
}
