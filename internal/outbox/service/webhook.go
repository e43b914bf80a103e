package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/easybilling/easybilling/internal/config"
	"github.com/easybilling/easybilling/internal/outbox/domain"
	tenantdomain "github.com/easybilling/easybilling/internal/tenant/domain"
)

// Dispatcher delivers webhook.* events to the tenant's configured endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.OutboxEvent) error
}

type DispatcherParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Tenants tenantdomain.Service
}

type dispatcher struct {
	log     *zap.Logger
	client  *http.Client
	tenants tenantdomain.Service
}

func NewDispatcher(p DispatcherParams) Dispatcher {
	return &dispatcher{
		log:     p.Log,
		client:  &http.Client{Timeout: p.Config.WebhookTimeout},
		tenants: p.Tenants,
	}
}

// Dispatch POSTs the event payload as JSON, signed with the tenant's
// webhook secret. A tenant without a configured URL drops the event
// silently so it never clogs the queue.
func (d *dispatcher) Dispatch(ctx context.Context, event domain.OutboxEvent) error {
	urlCfg, err := d.tenants.GetConfig(ctx, tenantdomain.ConfigWebhookURL)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrNotFound) {
			d.log.Debug("webhook url not configured, dropping event",
				zap.Int64("tenant_id", int64(event.TenantID)),
				zap.String("kind", event.Kind))
			return nil
		}
		return err
	}

	body, err := json.Marshal(map[string]any{
		"id":    event.ID.String(),
		"event": strings.TrimPrefix(event.Kind, domain.WebhookPrefix),
		"data":  event.Payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlCfg.Value, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// Fresh per attempt so receivers can dedupe retried deliveries.
	req.Header.Set("X-Delivery-ID", uuid.NewString())

	if secret, err := d.tenants.GetConfig(ctx, tenantdomain.ConfigWebhookSecret); err == nil {
		req.Header.Set("X-Signature", sign(secret.Value, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
