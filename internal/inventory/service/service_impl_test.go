package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/inventory/domain"
	"github.com/easybilling/easybilling/internal/inventory/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.StockLevel{},
		&domain.StockMovement{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.New(),
	})
}

func tenantContext(id snowflake.ID) context.Context {
	return tenantctx.WithTenantID(context.Background(), id)
}

func TestAdjustCreatesLevelAndDeductConsumesIt(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := tenantContext(7)

	require.NoError(t, svc.Adjust(ctx, 100, 1, 10, "initial count"))

	ok, err := svc.CheckAvailability(ctx, 100, 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Deduct(ctx, 100, 1, 4, "INV-202406-1", false))

	level, err := svc.GetLevel(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), level.Quantity)
}

func TestDeductGuardRejectsInsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := tenantContext(7)

	require.NoError(t, svc.Adjust(ctx, 100, 1, 3, ""))

	err := svc.Deduct(ctx, 100, 1, 5, "INV-202406-2", false)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// guard failure must not write a movement row
	movements, err := svc.ListMovements(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestDeductAllowNegativeNeverBlocks(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := tenantContext(7)

	require.NoError(t, svc.Deduct(ctx, 200, 1, 5, "INV-202406-3", true))

	level, err := svc.GetLevel(ctx, 200, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), level.Quantity)
}

func TestReverseRestoresDeductedStock(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := tenantContext(7)

	require.NoError(t, svc.Adjust(ctx, 100, 1, 10, ""))
	require.NoError(t, svc.Deduct(ctx, 100, 1, 10, "INV-202406-4", false))
	require.NoError(t, svc.Reverse(ctx, 100, 1, 10, "INV-202406-4"))

	level, err := svc.GetLevel(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), level.Quantity)

	movements, err := svc.ListMovements(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, movements, 3)
}

func TestCheckAvailabilityUnknownProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := tenantContext(7)

	ok, err := svc.CheckAvailability(ctx, 999, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	require.NoError(t, svc.Adjust(tenantContext(7), 100, 1, 10, ""))

	ok, err := svc.CheckAvailability(tenantContext(8), 100, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdjustRejectsZeroDelta(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	err := svc.Adjust(tenantContext(7), 100, 1, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
