package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	creditnotedomain "github.com/easybilling/easybilling/internal/creditnote/domain"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	securitygroupdomain "github.com/easybilling/easybilling/internal/securitygroup/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type stubAuthzSvc struct {
	allow    bool
	lastObj  string
	lastAct  string
	lastUser snowflake.ID
}

func (s *stubAuthzSvc) CreateGroup(context.Context, securitygroupdomain.CreateGroupRequest) (securitygroupdomain.SecurityGroup, error) {
	return securitygroupdomain.SecurityGroup{}, nil
}
func (s *stubAuthzSvc) UpdateGroupPermissions(context.Context, string, []securitygroupdomain.Permission) (securitygroupdomain.SecurityGroup, error) {
	return securitygroupdomain.SecurityGroup{}, nil
}
func (s *stubAuthzSvc) DeleteGroup(context.Context, string) error { return nil }
func (s *stubAuthzSvc) ListGroups(context.Context) ([]securitygroupdomain.SecurityGroup, error) {
	return nil, nil
}
func (s *stubAuthzSvc) AssignUser(context.Context, string, snowflake.ID) error   { return nil }
func (s *stubAuthzSvc) UnassignUser(context.Context, string, snowflake.ID) error { return nil }
func (s *stubAuthzSvc) ListUserGroups(context.Context, snowflake.ID) ([]securitygroupdomain.SecurityGroup, error) {
	return nil, nil
}
func (s *stubAuthzSvc) Authorize(ctx context.Context, userID snowflake.ID, object, action string) error {
	s.lastUser = userID
	s.lastObj = object
	s.lastAct = action
	if !s.allow {
		return securitygroupdomain.ErrForbidden
	}
	return nil
}

func newTestEngine(t *testing.T, authz *stubAuthzSvc) (*gin.Engine, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := NewEngine(zap.NewNop())
	srv := &Server{
		engine:           engine,
		log:              zap.NewNop(),
		securityGroupSvc: authz,
	}
	return engine, srv
}

func TestHealthEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t, &stubAuthzSvc{allow: true})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTenantContextPopulatesRequestContext(t *testing.T) {
	engine, srv := newTestEngine(t, &stubAuthzSvc{allow: true})

	var gotTenant, gotUser snowflake.ID
	engine.GET("/probe", srv.TenantContext(), srv.TenantRequired(), func(c *gin.Context) {
		gotTenant, _ = tenantctx.TenantIDFromContext(c.Request.Context())
		gotUser, _ = tenantctx.UserIDFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderTenant, "1001")
	req.Header.Set(HeaderUser, "42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(1001), gotTenant)
	assert.Equal(t, snowflake.ID(42), gotUser)
}

func TestTenantRequiredRejectsMissingHeader(t *testing.T) {
	engine, srv := newTestEngine(t, &stubAuthzSvc{allow: true})
	engine.GET("/probe", srv.TenantContext(), srv.TenantRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantContextRejectsMalformedHeader(t *testing.T) {
	engine, srv := newTestEngine(t, &stubAuthzSvc{allow: true})
	engine.GET("/probe", srv.TenantContext(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(HeaderTenant, "not-a-snowflake")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeMiddleware(t *testing.T) {
	authz := &stubAuthzSvc{allow: false}
	engine, srv := newTestEngine(t, authz)
	engine.POST("/probe", srv.TenantContext(), srv.TenantRequired(),
		srv.authorize(securitygroupdomain.PermInvoiceCreate),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) },
	)

	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set(HeaderTenant, "1001")
	req.Header.Set(HeaderUser, "42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, snowflake.ID(42), authz.lastUser)
	assert.Equal(t, "invoice", authz.lastObj)
	assert.Equal(t, "invoice.create", authz.lastAct)

	authz.allow = true
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthorizeRequiresUser(t *testing.T) {
	engine, srv := newTestEngine(t, &stubAuthzSvc{allow: true})
	engine.POST("/probe", srv.TenantContext(), srv.TenantRequired(),
		srv.authorize(securitygroupdomain.PermInvoiceCreate),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) },
	)

	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	req.Header.Set(HeaderTenant, "1001")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", invoicedomain.ErrNotFound, http.StatusNotFound},
		{"hold not found", invoicedomain.ErrHoldNotFound, http.StatusNotFound},
		{"illegal state", creditnotedomain.ErrIllegalState, http.StatusConflict},
		{"validation", invoicedomain.ErrEmptyItems, http.StatusBadRequest},
		{"insufficient stock", inventorydomain.ErrInsufficientStock, http.StatusUnprocessableEntity},
		{"forbidden", securitygroupdomain.ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}
