package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/easybilling/easybilling/internal/invoice/domain"
	"github.com/easybilling/easybilling/pkg/db/pagination"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error
	Save(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error
	AddPayments(ctx context.Context, db *gorm.DB, payments []domain.Payment) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListInvoiceRequest, page pagination.Pagination) ([]*domain.Invoice, error)
	NextSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (int64, error)
}

func Provide() Repository { return &repo{} }

type repo struct{}

func (r *repo) Create(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

// Save writes the aggregate root row only; items and payments are appended
// through their own paths and never rewritten here.
func (r *repo) Save(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Omit("Items", "Payments").Save(invoice).Error
}

func (r *repo) AddPayments(ctx context.Context, db *gorm.DB, payments []domain.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&payments).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, req domain.ListInvoiceRequest, page pagination.Pagination) ([]*domain.Invoice, error) {
	stmt := db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("tenant_id = ?", tenantID)
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var invoices []*domain.Invoice
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// NextSequence advances the tenant's counter for the period in a single
// atomic statement and returns the new value.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Raw(
		`INSERT INTO invoice_sequences (tenant_id, period, value)
		 VALUES (?, ?, 1)
		 ON CONFLICT (tenant_id, period)
		 DO UPDATE SET value = invoice_sequences.value + 1
		 RETURNING value`,
		tenantID, period).Scan(&value).Error
	return value, err
}
