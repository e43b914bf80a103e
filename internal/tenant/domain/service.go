package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidState  = errors.New("invalid_state_code")
	ErrInvalidKey    = errors.New("invalid_key")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
	ErrDuplicateKey  = errors.New("duplicate_configuration_key")
	ErrDuplicateCode = errors.New("duplicate_tenant_code")
)

type CreateTenantRequest struct {
	Name  string `json:"name"`
	GSTIN string `json:"gstin"`
	State string `json:"state"`
}

type SetConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (Tenant, error)
	GetByID(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)

	SetConfig(ctx context.Context, req SetConfigRequest) (TenantConfig, error)
	UpdateConfig(ctx context.Context, req SetConfigRequest) (TenantConfig, error)
	GetConfig(ctx context.Context, key string) (TenantConfig, error)
	ListConfig(ctx context.Context) ([]TenantConfig, error)
	DeleteConfig(ctx context.Context, key string) error
}
