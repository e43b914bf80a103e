// Package domain contains security groups and user assignments.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Permission strings follow "<object>.<action>".
type Permission string

const (
	PermInvoiceView       Permission = "invoice.view"
	PermInvoiceCreate     Permission = "invoice.create"
	PermInvoiceComplete   Permission = "invoice.complete"
	PermInvoiceCancel     Permission = "invoice.cancel"
	PermInvoiceReturn     Permission = "invoice.return"
	PermQuoteView         Permission = "quote.view"
	PermQuoteCreate       Permission = "quote.create"
	PermQuoteAccept       Permission = "quote.accept"
	PermCustomerView      Permission = "customer.view"
	PermCustomerCreate    Permission = "customer.create"
	PermProductView       Permission = "product.view"
	PermProductCreate     Permission = "product.create"
	PermInventoryView     Permission = "inventory.view"
	PermInventoryAdjust   Permission = "inventory.adjust"
	PermOfferView         Permission = "offer.view"
	PermOfferCreate       Permission = "offer.create"
	PermGstManage         Permission = "gst.manage"
	PermCreditNoteView    Permission = "creditnote.view"
	PermCreditNoteCreate  Permission = "creditnote.create"
	PermCreditNoteApprove Permission = "creditnote.approve"
	PermCreditNoteIssue   Permission = "creditnote.issue"
	PermCreditNoteApply   Permission = "creditnote.apply"
	PermRecurringManage   Permission = "recurring.manage"
	PermTenantManage      Permission = "tenant.manage"
	PermGroupManage       Permission = "securitygroup.manage"
)

// SecurityGroup is a named permission set within a tenant.
type SecurityGroup struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID      `gorm:"not null;uniqueIndex:ux_group_name" json:"tenant_id"`
	Name        string            `gorm:"type:text;not null;uniqueIndex:ux_group_name" json:"name"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	Permissions []GroupPermission `gorm:"foreignKey:GroupID" json:"permissions"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (SecurityGroup) TableName() string { return "security_groups" }

// GroupPermission is one permission row of a group.
type GroupPermission struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	GroupID    snowflake.ID `gorm:"not null;index" json:"group_id"`
	Permission Permission   `gorm:"type:text;not null" json:"permission"`
}

// TableName sets the database table name.
func (GroupPermission) TableName() string { return "group_permissions" }

// UserSecurityGroup assigns a user to a group.
type UserSecurityGroup struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;uniqueIndex:ux_user_group" json:"tenant_id"`
	UserID     snowflake.ID `gorm:"not null;uniqueIndex:ux_user_group" json:"user_id"`
	GroupID    snowflake.ID `gorm:"not null;uniqueIndex:ux_user_group" json:"group_id"`
	AssignedBy snowflake.ID `json:"assigned_by"`
	AssignedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"assigned_at"`
}

// TableName sets the database table name.
func (UserSecurityGroup) TableName() string { return "user_security_groups" }

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("security_group_not_found")
	ErrDuplicateGroup = errors.New("duplicate_security_group")
	ErrForbidden      = errors.New("forbidden")
)

type CreateGroupRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

type Service interface {
	CreateGroup(ctx context.Context, req CreateGroupRequest) (SecurityGroup, error)
	UpdateGroupPermissions(ctx context.Context, id string, permissions []Permission) (SecurityGroup, error)
	DeleteGroup(ctx context.Context, id string) error
	ListGroups(ctx context.Context) ([]SecurityGroup, error)

	AssignUser(ctx context.Context, groupID string, userID snowflake.ID) error
	UnassignUser(ctx context.Context, groupID string, userID snowflake.ID) error
	ListUserGroups(ctx context.Context, userID snowflake.ID) ([]SecurityGroup, error)

	// Authorize checks permission "<object>.<action>" for the user within
	// the tenant's casbin domain.
	Authorize(ctx context.Context, userID snowflake.ID, object, action string) error
}
