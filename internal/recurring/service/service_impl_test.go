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
	"github.com/easybilling/easybilling/internal/recurring/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
	tenantrepo "github.com/easybilling/easybilling/internal/tenant/repository"
	tenantsvc "github.com/easybilling/easybilling/internal/tenant/service"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type fixture struct {
	db         *gorm.DB
	svc        domain.Service
	clk        *clock.FakeClock
	tenantID   snowflake.ID
	customerID string
	productID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.RecurringInvoice{},
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

	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(7)
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

	svc := New(Params{DB: db, Log: log, GenID: node, Clock: clk, Invoices: invoices})

	tenant, err := tenants.Create(context.Background(), tenantdomain.CreateTenantRequest{
		Name: "Corner Mart", State: "Karnataka",
	})
	require.NoError(t, err)

	f := &fixture{db: db, svc: svc, clk: clk, tenantID: tenant.ID}

	customer, err := customers.Create(f.ctx(), customerdomain.CreateCustomerRequest{
		Name: "Asha Traders", State: "Karnataka",
	})
	require.NoError(t, err)
	f.customerID = customer.ID.String()

	product, err := products.Create(f.ctx(), productdomain.CreateProductRequest{
		SKU: "SUB-01", Name: "Monthly Service", UnitPrice: dec("999.00"),
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

func intPtr(v int) *int { return &v }

func (f *fixture) createSchedule(t *testing.T, freq domain.Frequency, max *int, end *time.Time) domain.RecurringInvoice {
	t.Helper()
	schedule, err := f.svc.Create(f.ctx(), domain.CreateScheduleRequest{
		CustomerID:  f.customerID,
		ProductID:   f.productID,
		LocationID:  "1",
		Frequency:   freq,
		Amount:      dec("999.00"),
		StartDate:   f.clk.Now(),
		EndDate:     end,
		MaxInvoices: max,
	})
	require.NoError(t, err)
	return schedule
}

func TestNextDateFrequencyTable(t *testing.T) {
	from := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		freq domain.Frequency
		want time.Time
	}{
		{domain.FrequencyDaily, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencyWeekly, time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencyBiweekly, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencyMonthly, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencyQuarterly, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencySemiannually, time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)},
		{domain.FrequencyAnnually, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		{domain.Frequency("UNKNOWN"), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.NextDate(tc.freq, from), string(tc.freq))
	}
}

func TestNextDateStrictlyIncreasing(t *testing.T) {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		next := domain.NextDate(domain.FrequencyMonthly, current)
		require.True(t, next.After(current))
		current = next
	}
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), current)
}

func TestGenerateCreatesInvoiceAndAdvances(t *testing.T) {
	f := newFixture(t)
	schedule := f.createSchedule(t, domain.FrequencyMonthly, nil, nil)

	invoice, err := f.svc.Generate(f.ctx(), &schedule)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.True(t, invoice.TotalAmount.Equal(dec("999.00")))

	assert.Equal(t, 1, schedule.InvoicesGenerated)
	require.NotNil(t, schedule.LastInvoiceDate)
	assert.Equal(t, f.clk.Now().AddDate(0, 1, 0), schedule.NextInvoiceDate)
}

func TestGenerateMaxInvoicesDeactivates(t *testing.T) {
	f := newFixture(t)
	schedule := f.createSchedule(t, domain.FrequencyMonthly, intPtr(1), nil)

	first, err := f.svc.Generate(f.ctx(), &schedule)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.svc.Generate(f.ctx(), &schedule)
	require.NoError(t, err)
	assert.Nil(t, second)

	got, err := f.svc.GetByID(f.ctx(), schedule.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 1, got.InvoicesGenerated)
}

func TestGeneratePastEndDateDeactivates(t *testing.T) {
	f := newFixture(t)
	end := f.clk.Now().AddDate(0, 0, 10)
	schedule := f.createSchedule(t, domain.FrequencyWeekly, nil, &end)

	f.clk.Advance(11 * 24 * time.Hour)

	invoice, err := f.svc.Generate(f.ctx(), &schedule)
	require.NoError(t, err)
	assert.Nil(t, invoice)

	got, err := f.svc.GetByID(f.ctx(), schedule.ID.String())
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestProcessDueSkipsFutureSchedules(t *testing.T) {
	f := newFixture(t)
	due := f.createSchedule(t, domain.FrequencyMonthly, nil, nil)

	future, err := f.svc.Create(f.ctx(), domain.CreateScheduleRequest{
		CustomerID: f.customerID,
		ProductID:  f.productID,
		LocationID: "1",
		Frequency:  domain.FrequencyMonthly,
		Amount:     dec("500.00"),
		StartDate:  f.clk.Now().AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ProcessDue(f.ctx()))

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	gotDue, err := f.svc.GetByID(f.ctx(), due.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, gotDue.InvoicesGenerated)

	gotFuture, err := f.svc.GetByID(f.ctx(), future.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, gotFuture.InvoicesGenerated)
}
