// Package domain contains persistence models for tenants and their
// configuration entries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is an isolated customer organization. All business rows carry its id.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	GSTIN     string       `gorm:"type:text" json:"gstin,omitempty"`
	State     string       `gorm:"type:text;not null" json:"state"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// TenantConfig is a tenant-scoped configuration entry. Keys are unique per
// tenant; creating an existing key is a business error.
type TenantConfig struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:ux_tenant_config_key" json:"tenant_id"`
	Key       string       `gorm:"type:text;not null;uniqueIndex:ux_tenant_config_key" json:"key"`
	Value     string       `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TenantConfig) TableName() string { return "tenant_configs" }

// Well-known configuration keys.
const (
	ConfigWebhookURL    = "webhook.url"
	ConfigWebhookSecret = "webhook.secret"
)
