// Package domain defines the transactional outbox event model.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status values for an outbox event.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Event kinds dispatched by the processor.
const (
	KindStockDeduct  = "stock.deduct"
	KindStockReverse = "stock.reverse"
	KindStockRestock = "stock.restock"

	// Webhook kinds carry the event name after the prefix,
	// e.g. webhook.invoice.completed.
	WebhookPrefix = "webhook."
)

// OutboxEvent is appended in the same transaction as the core write so a
// committed business change can never lose its side effect.
type OutboxEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	Kind          string            `gorm:"type:text;not null" json:"kind"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	Status        Status            `gorm:"type:text;not null;default:'PENDING';index:ix_outbox_due" json:"status"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time         `gorm:"not null;index:ix_outbox_due" json:"next_attempt_at"`
	LastError     string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

// StockPayload is the payload shape of the stock.* kinds.
type StockPayload struct {
	ProductID  snowflake.ID `json:"product_id"`
	LocationID snowflake.ID `json:"location_id"`
	Quantity   int64        `json:"quantity"`
	Reference  string       `json:"reference"`
}

// Enqueuer appends events inside the caller's transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, kind string, payload map[string]any) error
}

// Processor drains due events.
type Processor interface {
	ProcessDue(ctx context.Context) error
}
