package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/offer/domain"
	"github.com/easybilling/easybilling/internal/offer/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Offer{},
		&domain.OfferProduct{},
		&domain.OfferCategory{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func i64Ptr(v int64) *int64 { return &v }

func tenantContext(id snowflake.ID) context.Context {
	return tenantctx.WithTenantID(context.Background(), id)
}

func TestPercentageDiscountClampedToCap(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:                  "summer 10",
		Type:                  domain.OfferTypePercentage,
		DiscountValue:         dec("10"),
		MinimumPurchaseAmount: decPtr("500"),
		MaximumDiscountAmount: decPtr("80"),
	})
	require.NoError(t, err)

	got, err := svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("1000"),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("80")), "raw 100.00 clamps to 80, got %s", got)
}

func TestPercentageDiscountBelowMinimumIsZero(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:                  "summer 10",
		Type:                  domain.OfferTypePercentage,
		DiscountValue:         dec("10"),
		MinimumPurchaseAmount: decPtr("500"),
	})
	require.NoError(t, err)

	got, err := svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("499.99"),
	})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestDiscountOutsideValidityWindowIsZero(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "expired",
		Type:          domain.OfferTypePercentage,
		DiscountValue: dec("10"),
		ValidFrom:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:       &end,
	})
	require.NoError(t, err)

	got, err := svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("1000"),
	})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestApplicabilityProductOrCategoryIntersection(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "shoes only",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("50"),
		ProductIDs:    []string{"101"},
		CategoryIDs:   []string{"201"},
	})
	require.NoError(t, err)

	// Product match alone qualifies.
	got, err := svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("300"),
		ProductIDs:     []snowflake.ID{101},
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("50")))

	// Category match alone qualifies too (OR, not AND).
	got, err = svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("300"),
		CategoryIDs:    []snowflake.ID{201},
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("50")))

	// Neither matching yields zero.
	got, err = svc.CalculateDiscount(ctx, offer.ID.String(), domain.ResolveRequest{
		PurchaseAmount: dec("300"),
		ProductIDs:     []snowflake.ID{999},
	})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestApplyOfferEnforcesUsageLimit(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "two uses",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("25"),
		UsageLimit:    i64Ptr(2),
	})
	require.NoError(t, err)

	req := domain.ResolveRequest{PurchaseAmount: dec("100")}

	for i := 0; i < 2; i++ {
		got, err := svc.ApplyOffer(ctx, offer.ID.String(), req)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("25")))
	}

	_, err = svc.ApplyOffer(ctx, offer.ID.String(), req)
	assert.ErrorIs(t, err, domain.ErrUsageLimitExceeded)

	reloaded, err := svc.GetByID(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.UsageCount)
}

func TestBestOffersNonStackableWins(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	_, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "stack a",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("10"),
		Stackable:     true,
		Priority:      1,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "exclusive small",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("30"),
	})
	require.NoError(t, err)

	big, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "exclusive big",
		Type:          domain.OfferTypePercentage,
		DiscountValue: dec("10"),
	})
	require.NoError(t, err)

	resolved, err := svc.BestOffers(ctx, domain.ResolveRequest{PurchaseAmount: dec("1000")})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, big.ID, resolved[0].Offer.ID)
	assert.True(t, resolved[0].Discount.Equal(dec("100.00")))
}

func TestBestOffersStackableSortedByPriority(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	low, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "low priority",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("10"),
		Stackable:     true,
		Priority:      1,
	})
	require.NoError(t, err)

	high, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "high priority",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("5"),
		Stackable:     true,
		Priority:      9,
	})
	require.NoError(t, err)

	resolved, err := svc.BestOffers(ctx, domain.ResolveRequest{PurchaseAmount: dec("1000")})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, high.ID, resolved[0].Offer.ID)
	assert.Equal(t, low.ID, resolved[1].Offer.ID)
}

func TestBestOffersTieBrokenByEncounterOrder(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(7)

	first, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "first",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("40"),
	})
	require.NoError(t, err)
	clk.Advance(time.Second)

	_, err = svc.Create(ctx, domain.CreateOfferRequest{
		Name:          "second",
		Type:          domain.OfferTypeFixedAmount,
		DiscountValue: dec("40"),
	})
	require.NoError(t, err)

	resolved, err := svc.BestOffers(ctx, domain.ResolveRequest{PurchaseAmount: dec("1000")})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, first.ID, resolved[0].Offer.ID)
}
