package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	securitygroupdomain "github.com/easybilling/easybilling/internal/securitygroup/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

const (
	HeaderTenant = "X-Tenant-ID"
	HeaderUser   = "X-User-ID"
)

// RequestLogger logs one line per request with the tenant when present.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("tenant_id", tenantID.String()))
		}
		log.Info("request", fields...)
	}
}

// TenantContext resolves X-Tenant-ID and X-User-ID into the request
// context. Missing headers are tolerated here; TenantRequired gates the
// routes that cannot run without a tenant.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if raw := strings.TrimSpace(c.GetHeader(HeaderTenant)); raw != "" {
			tenantID, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant id"))
				return
			}
			ctx = tenantctx.WithTenantID(ctx, tenantID)
		}
		if raw := strings.TrimSpace(c.GetHeader(HeaderUser)); raw != "" {
			userID, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("user_id", "invalid_user", "invalid user id"))
				return
			}
			ctx = tenantctx.WithUserID(ctx, userID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := tenantctx.TenantIDFromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// authorize enforces the permission for the acting user within the
// request tenant. Policy rows keep the full "<object>.<action>" string as
// the casbin action.
func (s *Server) authorize(perm securitygroupdomain.Permission) gin.HandlerFunc {
	object, _, ok := strings.Cut(string(perm), ".")
	return func(c *gin.Context) {
		if !ok {
			AbortWithError(c, securitygroupdomain.ErrForbidden)
			return
		}

		userID, found := tenantctx.UserIDFromContext(c.Request.Context())
		if !found {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.securityGroupSvc.Authorize(c.Request.Context(), userID, object, string(perm)); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
