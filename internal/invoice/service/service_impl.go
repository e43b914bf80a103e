package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/easybilling/easybilling/internal/audit/domain"
	"github.com/easybilling/easybilling/internal/clock"
	customerdomain "github.com/easybilling/easybilling/internal/customer/domain"
	gstdomain "github.com/easybilling/easybilling/internal/gst/domain"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	"github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/internal/invoice/repository"
	outboxdomain "github.com/easybilling/easybilling/internal/outbox/domain"
	productdomain "github.com/easybilling/easybilling/internal/product/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/easybilling/easybilling/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Redis     *redis.Client
	Repo      repository.Repository
	Inventory inventorydomain.Service
	Tax       gstdomain.Service
	Products  productdomain.Service
	Customers customerdomain.Service
	Tenants   tenantdomain.Service
	Outbox    outboxdomain.Enqueuer
	Audit     auditdomain.Service
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	redis     *redis.Client
	repo      repository.Repository
	inventory inventorydomain.Service
	tax       gstdomain.Service
	products  productdomain.Service
	customers customerdomain.Service
	tenants   tenantdomain.Service
	outbox    outboxdomain.Enqueuer
	audit     auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		redis:     p.Redis,
		repo:      p.Repo,
		inventory: p.Inventory,
		tax:       p.Tax,
		products:  p.Products,
		customers: p.Customers,
		tenants:   p.Tenants,
		outbox:    p.Outbox,
		audit:     p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.Invoice{}, domain.ErrInvalidTenant
	}
	if len(req.Items) == 0 {
		return domain.Invoice{}, domain.ErrEmptyItems
	}

	locationID, err := snowflake.ParseString(strings.TrimSpace(req.LocationID))
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidID
	}

	var customerID *snowflake.ID
	customerState := ""
	if strings.TrimSpace(req.CustomerID) != "" {
		customer, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return domain.Invoice{}, err
		}
		customerID = &customer.ID
		customerState = customer.State
	}

	supplierState := ""
	if tenant, err := s.tenants.GetByID(ctx, tenantID.String()); err == nil {
		supplierState = tenant.State
	}

	now := s.clock.Now()
	invoiceID := s.genID.Generate()

	items := make([]domain.InvoiceItem, 0, len(req.Items))
	for _, ir := range req.Items {
		item, err := s.buildItem(ctx, tenantID, invoiceID, ir, supplierState, customerState, locationID)
		if err != nil {
			return domain.Invoice{}, err
		}
		items = append(items, item)
	}

	userID, _ := tenantctx.UserIDFromContext(ctx)

	invoice := domain.Invoice{
		ID:         invoiceID,
		TenantID:   tenantID,
		CustomerID: customerID,
		LocationID: locationID,
		Status:     domain.StatusDraft,
		Items:      items,
		Notes:      req.Notes,
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	invoice.CalculateTotals()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.repo.NextSequence(ctx, tx, tenantID, now.Format("200601"))
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = fmt.Sprintf("INV-%s-%d", now.Format("200601"), seq)
		return s.repo.Create(ctx, tx, &invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("tenant_id", int64(tenantID)))
	return invoice, nil
}

// buildItem resolves tax for the line and fills the computed total. Stock
// shortfall is advisory only: oversell is allowed, the warning feeds
// reconciliation reports.
func (s *service) buildItem(ctx context.Context, tenantID, invoiceID snowflake.ID, ir domain.ItemRequest, supplierState, customerState string, locationID snowflake.ID) (domain.InvoiceItem, error) {
	if ir.Quantity <= 0 {
		return domain.InvoiceItem{}, domain.ErrInvalidQuantity
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(ir.ProductID))
	if err != nil {
		return domain.InvoiceItem{}, domain.ErrInvalidID
	}

	product, err := s.products.GetByID(ctx, ir.ProductID)
	if err != nil {
		return domain.InvoiceItem{}, err
	}

	available, err := s.inventory.CheckAvailability(ctx, productID, locationID, ir.Quantity)
	if err == nil && !available {
		s.log.Warn("insufficient stock at invoice creation, proceeding",
			zap.Int64("product_id", int64(productID)),
			zap.Int64("quantity", ir.Quantity))
	}

	unitPrice := ir.UnitPrice
	if unitPrice.IsZero() {
		unitPrice = product.UnitPrice
	}

	item := domain.InvoiceItem{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		InvoiceID:      invoiceID,
		ProductID:      productID,
		Description:    ir.Description,
		Quantity:       ir.Quantity,
		UnitPrice:      unitPrice,
		DiscountAmount: ir.DiscountAmount,
		DiscountType:   ir.DiscountType,
		TaxRate:        ir.TaxRate,
		CreatedAt:      s.clock.Now(),
	}
	if item.Description == "" {
		item.Description = product.Name
	}

	if ir.TaxAmount != nil {
		item.TaxAmount = *ir.TaxAmount
	} else {
		item.TaxAmount, err = s.resolveTax(ctx, product, item, supplierState, customerState)
		if err != nil {
			return domain.InvoiceItem{}, err
		}
	}

	item.CalculateLineTotal()
	return item, nil
}

// resolveTax computes GST on the discounted net amount. A product without a
// code, or a code with no active rate, is sold tax-free with a warning.
func (s *service) resolveTax(ctx context.Context, product productdomain.Product, item domain.InvoiceItem, supplierState, customerState string) (decimal.Decimal, error) {
	code := product.HSNCode
	if code == "" {
		code = product.SACCode
	}
	if code == "" || supplierState == "" || customerState == "" {
		return decimal.Zero, nil
	}

	net := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(item.DiscountAmount)
	breakup, err := s.tax.Calculate(ctx, code, net, supplierState, customerState)
	if errors.Is(err, gstdomain.ErrNotFound) {
		s.log.Warn("no active gst rate for product, taxing zero",
			zap.String("code", code),
			zap.Int64("product_id", int64(product.ID)))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return breakup.TotalTax, nil
}

func (s *service) Complete(ctx context.Context, id string, req domain.CompleteInvoiceRequest) (domain.Invoice, error) {
	tenantID, invoice, err := s.load(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status != domain.StatusDraft {
		return domain.Invoice{}, domain.ErrIllegalState
	}

	now := s.clock.Now()
	payments := make([]domain.Payment, 0, len(req.Payments))
	for _, pr := range req.Payments {
		payments = append(payments, domain.Payment{
			ID:        s.genID.Generate(),
			TenantID:  tenantID,
			InvoiceID: invoice.ID,
			Mode:      pr.Mode,
			Amount:    pr.Amount,
			Reference: pr.Reference,
			CreatedAt: now,
		})
	}
	invoice.Payments = append(invoice.Payments, payments...)
	invoice.CalculateTotals()

	if invoice.BalanceAmount.IsPositive() {
		s.log.Warn("completing invoice with outstanding balance (credit sale)",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("balance", invoice.BalanceAmount.String()))
	}

	userID, _ := tenantctx.UserIDFromContext(ctx)
	invoice.Status = domain.StatusCompleted
	invoice.CompletedBy = &userID
	invoice.CompletedAt = &now
	invoice.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.AddPayments(ctx, tx, payments); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, tx, invoice); err != nil {
			return err
		}
		return s.enqueueStock(ctx, tx, invoice, invoice.Items, outboxdomain.KindStockDeduct)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.auditTransition(ctx, invoice, "invoice.completed", nil)
	return *invoice, nil
}

func (s *service) Cancel(ctx context.Context, id string, note string) (domain.Invoice, error) {
	_, invoice, err := s.load(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status != domain.StatusCompleted {
		return domain.Invoice{}, domain.ErrIllegalState
	}

	invoice.Status = domain.StatusCancelled
	invoice.UpdatedAt = s.clock.Now()
	appendNote(invoice, "cancelled", note)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Save(ctx, tx, invoice); err != nil {
			return err
		}
		return s.enqueueStock(ctx, tx, invoice, invoice.Items, outboxdomain.KindStockReverse)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.auditTransition(ctx, invoice, "invoice.cancelled", map[string]any{"note": note})
	return *invoice, nil
}

func (s *service) Return(ctx context.Context, id string, req domain.ReturnInvoiceRequest) (domain.Invoice, error) {
	_, invoice, err := s.load(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice.Status != domain.StatusCompleted {
		return domain.Invoice{}, domain.ErrIllegalState
	}

	wanted := make(map[snowflake.ID]bool, len(req.ItemIDs))
	for _, raw := range req.ItemIDs {
		itemID, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			return domain.Invoice{}, domain.ErrInvalidID
		}
		wanted[itemID] = true
	}

	var returned []domain.InvoiceItem
	for _, item := range invoice.Items {
		if wanted[item.ID] {
			returned = append(returned, item)
		}
	}

	invoice.Status = domain.StatusReturned
	invoice.UpdatedAt = s.clock.Now()
	appendNote(invoice, "returned", req.Note)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Save(ctx, tx, invoice); err != nil {
			return err
		}
		return s.enqueueStock(ctx, tx, invoice, returned, outboxdomain.KindStockReverse)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.auditTransition(ctx, invoice, "invoice.returned", map[string]any{
		"note": req.Note, "item_count": len(returned),
	})
	return *invoice, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	_, invoice, err := s.load(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidTenant
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, tenantID, req, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(inv *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{PageInfo: *pageInfo, Invoices: invoices}, nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *domain.Invoice, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return 0, nil, domain.ErrInvalidTenant
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return 0, nil, domain.ErrInvalidID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return 0, nil, err
	}
	if invoice == nil {
		return 0, nil, domain.ErrNotFound
	}
	return tenantID, invoice, nil
}

func (s *service) enqueueStock(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, items []domain.InvoiceItem, kind string) error {
	for _, item := range items {
		err := s.outbox.Enqueue(ctx, tx, invoice.TenantID, kind, map[string]any{
			"product_id":  item.ProductID,
			"location_id": invoice.LocationID,
			"quantity":    item.Quantity,
			"reference":   invoice.InvoiceNumber,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) auditTransition(ctx context.Context, invoice *domain.Invoice, action string, metadata map[string]any) {
	userID, _ := tenantctx.UserIDFromContext(ctx)
	var actor *snowflake.ID
	if userID != 0 {
		actor = &userID
	}
	target := invoice.ID.String()
	_ = s.audit.Log(ctx, invoice.TenantID, auditdomain.ActorTypeUser, actor, action, "invoice", &target, metadata)
}

func appendNote(invoice *domain.Invoice, action, note string) {
	line := action
	if note != "" {
		line = action + ": " + note
	}
	if invoice.Notes != "" {
		invoice.Notes += "\n"
	}
	invoice.Notes += line
}
