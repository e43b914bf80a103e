package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/outbox/domain"
)

type Repository interface {
	Add(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent) error
	ClaimDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.OutboxEvent, error)
	MarkSent(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, nextAt time.Time, lastErr string) error
	MarkFailed(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, now time.Time, lastErr string) error
}

func New() Repository { return &repo{} }

type repo struct{}

func (r *repo) Add(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ClaimDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	err := db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.StatusPending, now).
		Order("next_attempt_at asc").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, now time.Time) error {
	return db.WithContext(ctx).Model(event).Updates(map[string]any{
		"status":     domain.StatusSent,
		"attempts":   event.Attempts + 1,
		"last_error": "",
		"updated_at": now,
	}).Error
}

func (r *repo) MarkRetry(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, nextAt time.Time, lastErr string) error {
	return db.WithContext(ctx).Model(event).Updates(map[string]any{
		"attempts":        event.Attempts + 1,
		"next_attempt_at": nextAt,
		"last_error":      lastErr,
		"updated_at":      nextAt,
	}).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, now time.Time, lastErr string) error {
	return db.WithContext(ctx).Model(event).Updates(map[string]any{
		"status":     domain.StatusFailed,
		"attempts":   event.Attempts + 1,
		"last_error": lastErr,
		"updated_at": now,
	}).Error
}
