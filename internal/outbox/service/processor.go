package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/config"
	inventorydomain "github.com/easybilling/easybilling/internal/inventory/domain"
	"github.com/easybilling/easybilling/internal/outbox/domain"
	"github.com/easybilling/easybilling/internal/outbox/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

const backoffBase = 30 * time.Second

type ProcessorParams struct {
	fx.In

	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      repository.Repository
	Inventory inventorydomain.Service
	Webhooks  Dispatcher
}

type processor struct {
	cfg       config.Config
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      repository.Repository
	inventory inventorydomain.Service
	webhooks  Dispatcher
}

func NewProcessor(p ProcessorParams) domain.Processor {
	return &processor{
		cfg:       p.Config,
		db:        p.DB,
		log:       p.Log,
		clock:     p.Clock,
		repo:      p.Repo,
		inventory: p.Inventory,
		webhooks:  p.Webhooks,
	}
}

// ProcessDue drains a batch of due events. A failing event is rescheduled
// with exponential backoff and never blocks the rest of the batch.
func (p *processor) ProcessDue(ctx context.Context) error {
	now := p.clock.Now()
	events, err := p.repo.ClaimDue(ctx, p.db, now, p.cfg.OutboxBatchSize)
	if err != nil {
		return err
	}

	for i := range events {
		event := events[i]
		if err := p.dispatch(ctx, event); err != nil {
			p.fail(ctx, event, err)
			continue
		}
		if err := p.repo.MarkSent(ctx, p.db, &event, p.clock.Now()); err != nil {
			p.log.Error("mark outbox event sent",
				zap.Int64("event_id", int64(event.ID)), zap.Error(err))
		}
	}
	return nil
}

func (p *processor) dispatch(ctx context.Context, event domain.OutboxEvent) error {
	ctx = tenantctx.WithTenantID(ctx, event.TenantID)

	switch {
	case event.Kind == domain.KindStockDeduct:
		payload, err := stockPayload(event)
		if err != nil {
			return err
		}
		return p.inventory.Deduct(ctx, payload.ProductID, payload.LocationID, payload.Quantity, payload.Reference, true)

	case event.Kind == domain.KindStockReverse:
		payload, err := stockPayload(event)
		if err != nil {
			return err
		}
		return p.inventory.Reverse(ctx, payload.ProductID, payload.LocationID, payload.Quantity, payload.Reference)

	case event.Kind == domain.KindStockRestock:
		payload, err := stockPayload(event)
		if err != nil {
			return err
		}
		return p.inventory.Restock(ctx, payload.ProductID, payload.LocationID, payload.Quantity, payload.Reference)

	case strings.HasPrefix(event.Kind, domain.WebhookPrefix):
		return p.webhooks.Dispatch(ctx, event)

	default:
		return fmt.Errorf("unknown outbox kind %q", event.Kind)
	}
}

func (p *processor) fail(ctx context.Context, event domain.OutboxEvent, cause error) {
	now := p.clock.Now()
	if event.Attempts+1 >= p.cfg.OutboxMaxAttempts {
		p.log.Error("outbox event exhausted attempts",
			zap.Int64("event_id", int64(event.ID)),
			zap.String("kind", event.Kind),
			zap.Error(cause))
		if err := p.repo.MarkFailed(ctx, p.db, &event, now, cause.Error()); err != nil {
			p.log.Error("mark outbox event failed", zap.Error(err))
		}
		return
	}

	nextAt := now.Add(backoffBase << uint(event.Attempts))
	p.log.Warn("outbox event dispatch failed, rescheduled",
		zap.Int64("event_id", int64(event.ID)),
		zap.String("kind", event.Kind),
		zap.Time("next_attempt_at", nextAt),
		zap.Error(cause))
	if err := p.repo.MarkRetry(ctx, p.db, &event, nextAt, cause.Error()); err != nil {
		p.log.Error("mark outbox event retry", zap.Error(err))
	}
}

func stockPayload(event domain.OutboxEvent) (domain.StockPayload, error) {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.StockPayload{}, err
	}
	var payload domain.StockPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.StockPayload{}, err
	}
	return payload, nil
}
