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
	"github.com/easybilling/easybilling/internal/securitygroup/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.SecurityGroup{},
		&domain.GroupPermission{},
		&domain.UserSecurityGroup{},
	))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	return New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Enforcer: enforcer,
	})
}

func tenantContext(id snowflake.ID) context.Context {
	return tenantctx.WithUserID(tenantctx.WithTenantID(context.Background(), id), 1)
}

func TestAssignedUserGainsGroupPermissions(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	group, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{
		Name:        "cashiers",
		Permissions: []domain.Permission{domain.PermInvoiceCreate, domain.PermInvoiceComplete},
	})
	require.NoError(t, err)

	user := snowflake.ID(100)
	require.NoError(t, svc.AssignUser(ctx, group.ID.String(), user))

	assert.NoError(t, svc.Authorize(ctx, user, "invoice", "invoice.create"))
	assert.NoError(t, svc.Authorize(ctx, user, "invoice", "invoice.complete"))
	assert.ErrorIs(t, svc.Authorize(ctx, user, "invoice", "invoice.cancel"), domain.ErrForbidden)
}

func TestAuthorizationIsTenantScoped(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	group, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{
		Name:        "managers",
		Permissions: []domain.Permission{domain.PermInvoiceCancel},
	})
	require.NoError(t, err)

	user := snowflake.ID(100)
	require.NoError(t, svc.AssignUser(ctx, group.ID.String(), user))

	otherTenant := tenantContext(8)
	assert.ErrorIs(t, svc.Authorize(otherTenant, user, "invoice", "invoice.cancel"), domain.ErrForbidden)
}

func TestUnassignRevokesAccess(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	group, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{
		Name:        "cashiers",
		Permissions: []domain.Permission{domain.PermInvoiceCreate},
	})
	require.NoError(t, err)

	user := snowflake.ID(100)
	require.NoError(t, svc.AssignUser(ctx, group.ID.String(), user))
	require.NoError(t, svc.Authorize(ctx, user, "invoice", "invoice.create"))

	require.NoError(t, svc.UnassignUser(ctx, group.ID.String(), user))
	assert.ErrorIs(t, svc.Authorize(ctx, user, "invoice", "invoice.create"), domain.ErrForbidden)
}

func TestUpdatePermissionsReplacesSet(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	group, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{
		Name:        "approvers",
		Permissions: []domain.Permission{domain.PermCreditNoteApprove},
	})
	require.NoError(t, err)

	user := snowflake.ID(200)
	require.NoError(t, svc.AssignUser(ctx, group.ID.String(), user))
	require.NoError(t, svc.Authorize(ctx, user, "creditnote", "creditnote.approve"))

	updated, err := svc.UpdateGroupPermissions(ctx, group.ID.String(), []domain.Permission{domain.PermCreditNoteIssue})
	require.NoError(t, err)
	assert.Len(t, updated.Permissions, 1)

	assert.ErrorIs(t, svc.Authorize(ctx, user, "creditnote", "creditnote.approve"), domain.ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, user, "creditnote", "creditnote.issue"))
}

func TestDeleteGroupRemovesPolicies(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	group, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{
		Name:        "temps",
		Permissions: []domain.Permission{domain.PermInvoiceView},
	})
	require.NoError(t, err)

	user := snowflake.ID(300)
	require.NoError(t, svc.AssignUser(ctx, group.ID.String(), user))
	require.NoError(t, svc.DeleteGroup(ctx, group.ID.String()))

	assert.ErrorIs(t, svc.Authorize(ctx, user, "invoice", "invoice.view"), domain.ErrForbidden)

	groups, err := svc.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDuplicateGroupNameRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	_, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{Name: "cashiers"})
	require.NoError(t, err)

	_, err = svc.CreateGroup(ctx, domain.CreateGroupRequest{Name: "cashiers"})
	assert.ErrorIs(t, err, domain.ErrDuplicateGroup)
}

func TestListUserGroups(t *testing.T) {
	svc := newTestService(t)
	ctx := tenantContext(7)

	a, err := svc.CreateGroup(ctx, domain.CreateGroupRequest{Name: "a"})
	require.NoError(t, err)
	_, err = svc.CreateGroup(ctx, domain.CreateGroupRequest{Name: "b"})
	require.NoError(t, err)

	user := snowflake.ID(400)
	require.NoError(t, svc.AssignUser(ctx, a.ID.String(), user))

	groups, err := svc.ListUserGroups(ctx, user)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0].Name)
}
