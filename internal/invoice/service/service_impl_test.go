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
	"github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/internal/invoice/repository"
	outboxdomain "github.com/easybilling/easybilling/internal/outbox/domain"
	outboxrepo "github.com/easybilling/easybilling/internal/outbox/repository"
	outboxsvc "github.com/easybilling/easybilling/internal/outbox/service"
	productdomain "github.com/easybilling/easybilling/internal/product/domain"
	productrepo "github.com/easybilling/easybilling/internal/product/repository"
	productsvc "github.com/easybilling/easybilling/internal/product/service"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
	tenantrepo "github.com/easybilling/easybilling/internal/tenant/repository"
	tenantsvc "github.com/easybilling/easybilling/internal/tenant/service"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type fixture struct {
	db       *gorm.DB
	clk      *clock.FakeClock
	svc      domain.Service
	tenants  tenantdomain.Service
	products productdomain.Service
	tax      gstdomain.Service

	tenantID  snowflake.ID
	productID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Invoice{},
		&domain.InvoiceItem{},
		&domain.Payment{},
		&domain.InvoiceSequence{},
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
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	log := zap.NewNop()

	tenants := tenantsvc.New(tenantsvc.Params{DB: db, Log: log, GenID: node, Repo: tenantrepo.Provide()})
	customers := customersvc.New(customersvc.Params{DB: db, Log: log, GenID: node, Repo: customerrepo.Provide()})
	products := productsvc.New(productsvc.Params{DB: db, Log: log, GenID: node, Repo: productrepo.Provide()})
	tax := gstsvc.New(gstsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: gstrepo.Provide()})
	inventory := inventorysvc.New(inventorysvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: inventoryrepo.New()})
	audit := auditsvc.New(auditsvc.Params{DB: db, Log: log, GenID: node})
	enqueuer := outboxsvc.NewEnqueuer(outboxsvc.EnqueuerParams{GenID: node, Clock: clk, Repo: outboxrepo.New()})

	svc := New(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Redis:     rdb,
		Repo:      repository.Provide(),
		Inventory: inventory,
		Tax:       tax,
		Products:  products,
		Customers: customers,
		Tenants:   tenants,
		Outbox:    enqueuer,
		Audit:     audit,
	})

	f := &fixture{
		db: db, clk: clk, svc: svc,
		tenants: tenants, products: products, tax: tax,
	}

	// seed a tenant in Karnataka with one taxed product
	tenant, err := tenants.Create(tenantctx.WithTenantID(context.Background(), 1), tenantdomain.CreateTenantRequest{
		Name: "Corner Mart", GSTIN: "29AAAAA0000A1Z5", State: "Karnataka",
	})
	require.NoError(t, err)
	f.tenantID = tenant.ID

	ctx := f.ctx()
	product, err := products.Create(ctx, productdomain.CreateProductRequest{
		SKU: "PEN-01", Name: "Ball Pen", HSNCode: "9608", UnitPrice: dec("50.00"),
	})
	require.NoError(t, err)
	f.productID = product.ID.String()

	_, err = tax.CreateRate(ctx, gstdomain.CreateRateRequest{
		Code: "9608", CodeKind: gstdomain.CodeKindHSN,
		CGSTRate: dec("9"), SGSTRate: dec("9"), IGSTRate: dec("18"),
		ValidFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
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

func (f *fixture) createDraft(t *testing.T) domain.Invoice {
	t.Helper()
	inv, err := f.svc.Create(f.ctx(), domain.CreateInvoiceRequest{
		LocationID: "1",
		Items: []domain.ItemRequest{
			{ProductID: f.productID, Quantity: 2, UnitPrice: dec("50.00"), TaxAmount: decPtr("5.00")},
			{ProductID: f.productID, Quantity: 2, UnitPrice: dec("50.00"), TaxAmount: decPtr("5.00")},
		},
	})
	require.NoError(t, err)
	return inv
}

func TestCreateComputesTotalsAndNumber(t *testing.T) {
	f := newFixture(t)

	inv := f.createDraft(t)

	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Equal(t, "INV-202406-1", inv.InvoiceNumber)
	// each line: 50×2 + 5 tax = 105
	assert.True(t, inv.Subtotal.Equal(dec("210.00")), inv.Subtotal.String())
	assert.True(t, inv.TaxAmount.Equal(dec("10.00")))
	assert.True(t, inv.TotalAmount.Equal(dec("220.00")))
	assert.True(t, inv.BalanceAmount.Equal(dec("220.00")))

	second := f.createDraft(t)
	assert.Equal(t, "INV-202406-2", second.InvoiceNumber)
}

func TestCreateResolvesTaxFromHSNWhenUnset(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()

	inv, err := f.svc.Create(ctx, domain.CreateInvoiceRequest{
		LocationID: "1",
		Items: []domain.ItemRequest{
			{ProductID: f.productID, Quantity: 1, UnitPrice: dec("100.00")},
		},
	})
	require.NoError(t, err)

	// no customer → no customer state → tax-free fallback
	assert.True(t, inv.Items[0].TaxAmount.IsZero())
}

func TestCompleteRecordsPaymentsAndEnqueuesDeductions(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t)

	completed, err := f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{
		Payments: []domain.PaymentRequest{{Mode: domain.PaymentCash, Amount: dec("50.00")}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, completed.Status)
	assert.True(t, completed.PaidAmount.Equal(dec("50.00")))
	assert.True(t, completed.BalanceAmount.Equal(dec("170.00"))) // credit sale allowed
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.CompletedBy)
	assert.Equal(t, snowflake.ID(42), *completed.CompletedBy)

	var events []outboxdomain.OutboxEvent
	require.NoError(t, f.db.Where("kind = ?", outboxdomain.KindStockDeduct).Find(&events).Error)
	assert.Len(t, events, 2)
}

func TestCompleteRejectsNonDraft(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t)

	_, err := f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{})
	require.NoError(t, err)

	_, err = f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{})
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}

func TestCancelOnlyFromCompleted(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t)

	_, err := f.svc.Cancel(f.ctx(), inv.ID.String(), "customer walked out")
	assert.ErrorIs(t, err, domain.ErrIllegalState)

	_, err = f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.ctx(), inv.ID.String(), "customer walked out")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "customer walked out")

	var events []outboxdomain.OutboxEvent
	require.NoError(t, f.db.Where("kind = ?", outboxdomain.KindStockReverse).Find(&events).Error)
	assert.Len(t, events, 2)

	// terminal: no way back
	_, err = f.svc.Cancel(f.ctx(), inv.ID.String(), "again")
	assert.ErrorIs(t, err, domain.ErrIllegalState)
}

func TestReturnReversesOnlyNamedItems(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t)

	_, err := f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{})
	require.NoError(t, err)

	returned, err := f.svc.Return(f.ctx(), inv.ID.String(), domain.ReturnInvoiceRequest{
		ItemIDs: []string{inv.Items[0].ID.String()},
		Note:    "damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReturned, returned.Status)

	var events []outboxdomain.OutboxEvent
	require.NoError(t, f.db.Where("kind = ?", outboxdomain.KindStockReverse).Find(&events).Error)
	assert.Len(t, events, 1)
}

func TestTotalsInsertionOrderIndependent(t *testing.T) {
	inv := domain.Invoice{
		Items: []domain.InvoiceItem{
			{Quantity: 2, UnitPrice: dec("50.00"), TaxAmount: dec("5.00")},
			{Quantity: 1, UnitPrice: dec("30.00"), DiscountAmount: dec("3.00"), TaxAmount: dec("1.35")},
		},
		Payments: []domain.Payment{{Amount: dec("50.00")}, {Amount: dec("100.00")}},
	}
	inv.CalculateTotals()

	reordered := domain.Invoice{
		Items:    []domain.InvoiceItem{inv.Items[1], inv.Items[0]},
		Payments: []domain.Payment{inv.Payments[1], inv.Payments[0]},
	}
	reordered.CalculateTotals()

	assert.True(t, inv.TotalAmount.Equal(reordered.TotalAmount))
	assert.True(t, inv.BalanceAmount.Equal(reordered.BalanceAmount))
	assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)))
	assert.True(t, inv.BalanceAmount.Equal(inv.TotalAmount.Sub(inv.PaidAmount)))
}

func TestOverpaymentYieldsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t)

	completed, err := f.svc.Complete(f.ctx(), inv.ID.String(), domain.CompleteInvoiceRequest{
		Payments: []domain.PaymentRequest{{Mode: domain.PaymentUPI, Amount: dec("300.00")}},
	})
	require.NoError(t, err)
	assert.True(t, completed.BalanceAmount.Equal(dec("-80.00")))
}

func TestHoldResumeDeleteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()

	req := domain.CreateInvoiceRequest{
		LocationID: "1",
		Notes:      "parked sale",
		Items: []domain.ItemRequest{
			{ProductID: f.productID, Quantity: 3, UnitPrice: dec("50.00")},
		},
	}

	ref, err := f.svc.Hold(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	got, err := f.svc.Resume(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, req.Notes, got.Notes)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(3), got.Items[0].Quantity)

	require.NoError(t, f.svc.DeleteHold(ctx, ref))
	_, err = f.svc.Resume(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}

func TestHoldIsTenantScoped(t *testing.T) {
	f := newFixture(t)

	ref, err := f.svc.Hold(f.ctx(), domain.CreateInvoiceRequest{
		LocationID: "1",
		Items:      []domain.ItemRequest{{ProductID: f.productID, Quantity: 1}},
	})
	require.NoError(t, err)

	other := tenantctx.WithTenantID(context.Background(), 999)
	_, err = f.svc.Resume(other, ref)
	assert.ErrorIs(t, err, domain.ErrHoldNotFound)
}
