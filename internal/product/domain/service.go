package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidSKU    = errors.New("invalid_sku")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidPrice  = errors.New("invalid_price")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("product_not_found")
	ErrDuplicateSKU  = errors.New("duplicate_sku")
)

type CreateProductRequest struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	HSNCode    string          `json:"hsn_code"`
	SACCode    string          `json:"sac_code"`
	CategoryID string          `json:"category_id"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type Service interface {
	Create(ctx context.Context, req CreateProductRequest) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Deactivate(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, req CreateCategoryRequest) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
