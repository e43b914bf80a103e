package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

// Held drafts live in redis without expiry: a parked sale stays parked
// until the cashier resumes or discards it.

func holdKey(tenantID int64, ref string) string {
	return fmt.Sprintf("hold:%d:%s", tenantID, ref)
}

func (s *service) Hold(ctx context.Context, req domain.CreateInvoiceRequest) (string, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return "", domain.ErrInvalidTenant
	}
	if len(req.Items) == 0 {
		return "", domain.ErrEmptyItems
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	ref := ulid.Make().String()
	if err := s.redis.Set(ctx, holdKey(int64(tenantID), ref), raw, 0).Err(); err != nil {
		return "", err
	}

	s.log.Info("invoice draft held",
		zap.String("ref", ref),
		zap.Int64("tenant_id", int64(tenantID)))
	return ref, nil
}

func (s *service) Resume(ctx context.Context, ref string) (domain.CreateInvoiceRequest, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.CreateInvoiceRequest{}, domain.ErrInvalidTenant
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.CreateInvoiceRequest{}, domain.ErrHoldNotFound
	}

	raw, err := s.redis.Get(ctx, holdKey(int64(tenantID), ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CreateInvoiceRequest{}, domain.ErrHoldNotFound
	}
	if err != nil {
		return domain.CreateInvoiceRequest{}, err
	}

	var req domain.CreateInvoiceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.CreateInvoiceRequest{}, err
	}
	return req, nil
}

func (s *service) DeleteHold(ctx context.Context, ref string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}

	deleted, err := s.redis.Del(ctx, holdKey(int64(tenantID), strings.TrimSpace(ref))).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}
