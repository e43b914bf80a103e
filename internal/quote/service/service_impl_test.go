package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/easybilling/easybilling/internal/audit/domain"
	auditsvc "github.com/easybilling/easybilling/internal/audit/service"
	"github.com/easybilling/easybilling/internal/clock"
	customerdomain "github.com/easybilling/easybilling/internal/customer/domain"
	customerrepo "github.com/easybilling/easybilling/internal/customer/repository"
	customersvc "github.com/easybilling/easybilling/internal/customer/service"
	gstdomain "github.com/easybilling/easybilling/internal/gst/domain"
	gstrepo "github.com/easybilling/easybilling/internal/gst/repository"
	gstsvc "github.com/easybilling/easybilling/internal/gst/service"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	inventoryrepo "github.com/easybilling/easybilling/internal/inventory/repository"
	inventorysvc "github.com/easybilling/easybilling/internal/inventory/service"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	invoicerepo "github.com/easybilling/easybilling/internal/invoice/repository"
	invoicesvc "github.com/easybilling/easybilling/internal/invoice/service"
	outboxdomain "github.com/easybilling/easybilling/internal/outbox/domain"
	outboxrepo "github.com/easybilling/easybilling/internal/outbox/repository"
	outboxsvc "github.com/easybilling/easybilling/internal/outbox/service"
	productdomain "github.com/easybilling/easybilling/internal/product/domain"
	productrepo "github.com/easybilling/easybilling/internal/product/repository"
	productsvc "github.com/easybilling/easybilling/internal/product/service"
	"github.com/easybilling/easybilling/internal/quote/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
	tenantrepo "github.com/easybilling/easybilling/internal/tenant/repository"
	tenantsvc "github.com/easybilling/easybilling/internal/tenant/service"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type fixture struct {
	svc       domain.Service
	clk       *clock.FakeClock
	tenantID  snowflake.ID
	productID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Quote{},
		&domain.QuoteItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.Payment{},
		&invoicedomain.InvoiceSequence{},
		&tenantdomain.Tenant{},
		&tenantdomain.TenantConfig{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&productdomain.Category{},
		&gstdomain.GstRate{},
		&inventorydomain.StockLevel{},
		&inventorydomain.StockMovement{},
		&outboxdomain.OutboxEvent{},
		&auditdomain.AuditLog{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clk := clock.NewFakeClock(time.Date(2024, 6, 15, 11, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	log := zap.NewNop()

	tenants := tenantsvc.New(tenantsvc.Params{DB: db, Log: log, GenID: node, Repo: tenantrepo.Provide()})
	customers := customersvc.New(customersvc.Params{DB: db, Log: log, GenID: node, Repo: customerrepo.Provide()})
	products := productsvc.New(productsvc.Params{DB: db, Log: log, GenID: node, Repo: productrepo.Provide()})
	tax := gstsvc.New(gstsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: gstrepo.Provide()})
	inventory := inventorysvc.New(inventorysvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: inventoryrepo.New()})
	audit := auditsvc.New(auditsvc.Params{DB: db, Log: log, GenID: node})
	enqueuer := outboxsvc.NewEnqueuer(outboxsvc.EnqueuerParams{GenID: node, Clock: clk, Repo: outboxrepo.New()})

	invoices := invoicesvc.New(invoicesvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Redis: rdb,
		Repo: invoicerepo.Provide(), Inventory: inventory, Tax: tax,
		Products: products, Customers: customers, Tenants: tenants,
		Outbox: enqueuer, Audit: audit,
	})

	svc := New(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Customers: customers, Invoices: invoices,
	})

	tenant, err := tenants.Create(context.Background(), tenantdomain.CreateTenantRequest{
		Name: "Corner Mart", State: "Karnataka",
	})
	require.NoError(t, err)

	f := &fixture{svc: svc, clk: clk, tenantID: tenant.ID}

	product, err := products.Create(f.ctx(), productdomain.CreateProductRequest{
		SKU: "PEN-01", Name: "Ball Pen", UnitPrice: dec("50.00"),
	})
	require.NoError(t, err)
	f.productID = product.ID.String()
	return f
}

func (f *fixture) ctx() context.Context {
	ctx := tenantctx.WithTenantID(context.Background(), f.tenantID)
	return tenantctx.WithUserID(ctx, 42)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) createQuote(t *testing.T, validUntil time.Time) domain.Quote {
	t.Helper()
	quote, err := f.svc.Create(f.ctx(), domain.CreateQuoteRequest{
		LocationID: "1",
		ValidUntil: validUntil,
		Items: []invoicedomain.ItemRequest{
			{ProductID: f.productID, Quantity: 2, UnitPrice: dec("50.00"), TaxAmount: decPtr("9.00")},
		},
	})
	require.NoError(t, err)
	return quote
}

func TestCreateComputesInvoiceArithmetic(t *testing.T) {
	f := newFixture(t)

	quote := f.createQuote(t, f.clk.Now().AddDate(0, 0, 7))

	// line: 50×2 + 9 tax = 109
	assert.True(t, quote.Subtotal.Equal(dec("109.00")), quote.Subtotal.String())
	assert.True(t, quote.TaxAmount.Equal(dec("9.00")))
	assert.True(t, quote.TotalAmount.Equal(dec("118.00")))
	assert.Equal(t, domain.StatusDraft, quote.Status)
}

func TestMarkSentOnlyFromDraft(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t, f.clk.Now().AddDate(0, 0, 7))

	sent, err := f.svc.MarkSent(f.ctx(), quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, sent.Status)

	_, err = f.svc.MarkSent(f.ctx(), quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}

func TestAcceptConvertsToInvoice(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t, f.clk.Now().AddDate(0, 0, 7))

	invoice, err := f.svc.Accept(f.ctx(), quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusDraft, invoice.Status)
	assert.True(t, invoice.TotalAmount.Equal(quote.TotalAmount))

	got, err := f.svc.GetByID(f.ctx(), quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, got.Status)
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, invoice.ID, *got.InvoiceID)

	// accepted is terminal
	_, err = f.svc.Accept(f.ctx(), quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}

func TestAcceptExpiredQuoteRejected(t *testing.T) {
	f := newFixture(t)
	quote := f.createQuote(t, f.clk.Now().AddDate(0, 0, 1))

	f.clk.Advance(48 * time.Hour)

	_, err := f.svc.Accept(f.ctx(), quote.ID.String())
	assert.ErrorIs(t, err, domain.ErrExpired)

	got, err := f.svc.GetByID(f.ctx(), quote.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
}
