package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/outbox/domain"
	"github.com/easybilling/easybilling/internal/outbox/repository"
)

type EnqueuerParams struct {
	fx.In

	GenID *snowflake.Node
	Clock clock.Clock
	Repo  repository.Repository
}

type enqueuer struct {
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository
}

func NewEnqueuer(p EnqueuerParams) domain.Enqueuer {
	return &enqueuer{genID: p.GenID, clock: p.Clock, repo: p.Repo}
}

// Enqueue writes the event on the caller's transaction so it commits or
// rolls back together with the business change.
func (e *enqueuer) Enqueue(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind string, payload map[string]any) error {
	now := e.clock.Now()
	return e.repo.Add(ctx, tx, &domain.OutboxEvent{
		ID:            e.genID.Generate(),
		TenantID:      tenantID,
		Kind:          kind,
		Payload:       payload,
		Status:        domain.StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
