package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/gst/domain"
	"github.com/easybilling/easybilling/internal/gst/repository"
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
	require.NoError(t, db.AutoMigrate(&domain.GstRate{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
}

func tenantContext(tenantID snowflake.ID) context.Context {
	return tenantctx.WithTenantID(context.Background(), tenantID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateIntraStateSplitsCGSTSGST(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "6403",
		CodeKind: domain.CodeKindHSN,
		CGSTRate: dec("9"),
		SGSTRate: dec("9"),
		IGSTRate: dec("18"),
	})
	require.NoError(t, err)

	breakup, err := svc.Calculate(ctx, "6403", dec("1000"), "Karnataka", "karnataka")
	require.NoError(t, err)

	assert.True(t, breakup.CGST.Equal(dec("90.00")), "cgst=%s", breakup.CGST)
	assert.True(t, breakup.SGST.Equal(dec("90.00")), "sgst=%s", breakup.SGST)
	assert.True(t, breakup.IGST.IsZero(), "igst=%s", breakup.IGST)
	assert.True(t, breakup.TotalTax.Equal(dec("180.00")), "total=%s", breakup.TotalTax)
}

func TestCalculateInterStateUsesIGST(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "6403",
		CodeKind: domain.CodeKindHSN,
		CGSTRate: dec("9"),
		SGSTRate: dec("9"),
		IGSTRate: dec("18"),
		CessRate: dec("1"),
	})
	require.NoError(t, err)

	breakup, err := svc.Calculate(ctx, "6403", dec("1000"), "Karnataka", "Kerala")
	require.NoError(t, err)

	assert.True(t, breakup.CGST.IsZero())
	assert.True(t, breakup.SGST.IsZero())
	assert.True(t, breakup.IGST.Equal(dec("180.00")), "igst=%s", breakup.IGST)
	assert.True(t, breakup.Cess.Equal(dec("10.00")), "cess=%s", breakup.Cess)
	assert.True(t, breakup.TotalTax.Equal(dec("190.00")), "total=%s", breakup.TotalTax)
}

func TestCalculateTriesHSNBeforeSAC(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "9983",
		CodeKind: domain.CodeKindSAC,
		CGSTRate: dec("9"),
		SGSTRate: dec("9"),
		IGSTRate: dec("18"),
	})
	require.NoError(t, err)

	breakup, err := svc.Calculate(ctx, "9983", dec("500"), "MH", "MH")
	require.NoError(t, err)
	assert.True(t, breakup.CGST.Equal(dec("45.00")))
}

func TestCalculateNoActiveRateFails(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	expired := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:      "6403",
		CodeKind:  domain.CodeKindHSN,
		CGSTRate:  dec("9"),
		SGSTRate:  dec("9"),
		IGSTRate:  dec("18"),
		ValidFrom: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   &expired,
	})
	require.NoError(t, err)

	_, err = svc.Calculate(ctx, "6403", dec("100"), "MH", "MH")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTenantOverridePreferredOverGlobal(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "6403",
		CodeKind: domain.CodeKindHSN,
		CGSTRate: dec("6"),
		SGSTRate: dec("6"),
		IGSTRate: dec("12"),
		Global:   true,
	})
	require.NoError(t, err)

	_, err = svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "6403",
		CodeKind: domain.CodeKindHSN,
		CGSTRate: dec("9"),
		SGSTRate: dec("9"),
		IGSTRate: dec("18"),
	})
	require.NoError(t, err)

	breakup, err := svc.Calculate(ctx, "6403", dec("100"), "MH", "MH")
	require.NoError(t, err)
	assert.True(t, breakup.CGST.Equal(dec("9.00")), "tenant override should win, cgst=%s", breakup.CGST)

	otherCtx := tenantContext(43)
	breakup, err = svc.Calculate(otherCtx, "6403", dec("100"), "MH", "MH")
	require.NoError(t, err)
	assert.True(t, breakup.CGST.Equal(dec("6.00")), "other tenant sees global rate, cgst=%s", breakup.CGST)
}

func TestCalculateForCategoryExplicitInterstate(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := tenantContext(42)

	_, err := svc.CreateRate(ctx, domain.CreateRateRequest{
		Code:     "FOOTWEAR",
		Category: "footwear",
		CGSTRate: dec("2.5"),
		SGSTRate: dec("2.5"),
		IGSTRate: dec("5"),
	})
	require.NoError(t, err)

	breakup, err := svc.CalculateForCategory(ctx, "footwear", dec("999"), true)
	require.NoError(t, err)
	assert.True(t, breakup.IGST.Equal(dec("49.95")), "igst=%s", breakup.IGST)

	breakup, err = svc.CalculateForCategory(ctx, "footwear", dec("999"), false)
	require.NoError(t, err)
	assert.True(t, breakup.CGST.Equal(dec("24.98")), "cgst rounds half-up, got %s", breakup.CGST)
	assert.True(t, breakup.SGST.Equal(dec("24.98")))
}
