package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/easybilling/easybilling/internal/audit/domain"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/creditnote/domain"
	invoicedomain "github.com/easybilling/easybilling/internal/invoice/domain"
	invoicerepo "github.com/easybilling/easybilling/internal/invoice/repository"
	outboxdomain "github.com/easybilling/easybilling/internal/outbox/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invoices invoicerepo.Repository
	Outbox   outboxdomain.Enqueuer
	Audit    auditdomain.Service
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	invoices invoicerepo.Repository
	outbox   outboxdomain.Enqueuer
	audit    auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("creditnote.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		invoices: p.Invoices,
		outbox:   p.Outbox,
		audit:    p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateCreditNoteRequest) (domain.CreditNote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.CreditNote{}, domain.ErrInvalidTenant
	}
	if len(req.Items) == 0 {
		return domain.CreditNote{}, domain.ErrEmptyItems
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return domain.CreditNote{}, domain.ErrInvalidID
	}
	locationID, err := snowflake.ParseString(strings.TrimSpace(req.LocationID))
	if err != nil {
		return domain.CreditNote{}, domain.ErrInvalidID
	}

	invoice, err := s.invoices.FindByID(ctx, s.db, tenantID, invoiceID)
	if err != nil {
		return domain.CreditNote{}, err
	}
	if invoice == nil {
		return domain.CreditNote{}, invoicedomain.ErrNotFound
	}

	now := s.clock.Now()
	noteID := s.genID.Generate()

	items := make([]domain.CreditNoteItem, 0, len(req.Items))
	for _, ir := range req.Items {
		if ir.Quantity <= 0 {
			return domain.CreditNote{}, invoicedomain.ErrInvalidQuantity
		}
		productID, err := snowflake.ParseString(strings.TrimSpace(ir.ProductID))
		if err != nil {
			return domain.CreditNote{}, domain.ErrInvalidID
		}
		items = append(items, domain.CreditNoteItem{
			ID:            s.genID.Generate(),
			TenantID:      tenantID,
			CreditNoteID:  noteID,
			ProductID:     productID,
			Quantity:      ir.Quantity,
			UnitPrice:     ir.UnitPrice,
			Discount:      ir.Discount,
			TaxPercentage: ir.TaxPercentage,
			Restock:       ir.Restock,
		})
	}

	note := domain.CreditNote{
		ID:         noteID,
		TenantID:   tenantID,
		InvoiceID:  invoiceID,
		LocationID: locationID,
		Status:     domain.StatusDraft,
		Reason:     req.Reason,
		Restock:    req.Restock,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	note.CalculateTotals()

	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return domain.CreditNote{}, err
	}
	return note, nil
}

func (s *service) GetByID(ctx context.Context, id string) (domain.CreditNote, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return domain.CreditNote{}, err
	}
	return *note, nil
}

func (s *service) List(ctx context.Context, status domain.Status) ([]domain.CreditNote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}

	stmt := s.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ?", tenantID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var notes []domain.CreditNote
	err := stmt.Order("created_at desc").Find(&notes).Error
	return notes, err
}

func (s *service) Submit(ctx context.Context, id string) (domain.CreditNote, error) {
	return s.transition(ctx, id, domain.StatusDraft, domain.StatusPendingApproval, "creditnote.submitted", nil)
}

func (s *service) Approve(ctx context.Context, id string) (domain.CreditNote, error) {
	return s.transition(ctx, id, domain.StatusPendingApproval, domain.StatusApproved, "creditnote.approved",
		func(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error {
			now := s.clock.Now()
			userID, _ := tenantctx.UserIDFromContext(ctx)
			note.ApprovedBy = &userID
			note.ApprovedAt = &now
			return nil
		})
}

// Issue flips the note to ISSUED and, when restocking is requested,
// enqueues a restock per flagged item.
func (s *service) Issue(ctx context.Context, id string) (domain.CreditNote, error) {
	return s.transition(ctx, id, domain.StatusApproved, domain.StatusIssued, "creditnote.issued",
		func(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error {
			now := s.clock.Now()
			note.IssuedAt = &now
			if !note.Restock {
				return nil
			}
			for _, item := range note.Items {
				if !item.Restock {
					continue
				}
				err := s.outbox.Enqueue(ctx, tx, note.TenantID, outboxdomain.KindStockRestock, map[string]any{
					"product_id":  item.ProductID,
					"location_id": note.LocationID,
					"quantity":    item.Quantity,
					"reference":   "CN-" + note.ID.String(),
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *service) Apply(ctx context.Context, id string, method domain.ApplicationMethod) (domain.CreditNote, error) {
	switch method {
	case domain.MethodReduceInvoice, domain.MethodRefund, domain.MethodStoreCredit:
	default:
		return domain.CreditNote{}, domain.ErrInvalidMethod
	}

	return s.transition(ctx, id, domain.StatusIssued, domain.StatusApplied, "creditnote.applied",
		func(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error {
			now := s.clock.Now()
			note.AppliedAt = &now

			switch method {
			case domain.MethodReduceInvoice:
				return s.reduceInvoice(ctx, tx, note)
			default:
				// No ledger exists for refunds or store credit yet; the
				// event carries the amount for the downstream system.
				s.log.Info("credit note applied without ledger mutation",
					zap.String("method", string(method)),
					zap.Int64("credit_note_id", int64(note.ID)))
				return s.outbox.Enqueue(ctx, tx, note.TenantID,
					outboxdomain.WebhookPrefix+"creditnote.applied", map[string]any{
						"credit_note_id": note.ID.String(),
						"invoice_id":     note.InvoiceID.String(),
						"method":         string(method),
						"amount":         note.TotalAmount.String(),
					})
			}
		})
}

// reduceInvoice records a CREDIT payment on the source invoice for the
// note's total, shrinking its outstanding balance.
func (s *service) reduceInvoice(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error {
	invoice, err := s.invoices.FindByID(ctx, tx, note.TenantID, note.InvoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return invoicedomain.ErrNotFound
	}

	payment := invoicedomain.Payment{
		ID:        s.genID.Generate(),
		TenantID:  note.TenantID,
		InvoiceID: invoice.ID,
		Mode:      invoicedomain.PaymentCredit,
		Amount:    note.TotalAmount,
		Reference: "CN-" + note.ID.String(),
		CreatedAt: s.clock.Now(),
	}
	if err := s.invoices.AddPayments(ctx, tx, []invoicedomain.Payment{payment}); err != nil {
		return err
	}

	invoice.Payments = append(invoice.Payments, payment)
	invoice.CalculateTotals()
	invoice.UpdatedAt = s.clock.Now()
	return s.invoices.Save(ctx, tx, invoice)
}

func (s *service) Cancel(ctx context.Context, id string) (domain.CreditNote, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return domain.CreditNote{}, err
	}
	if note.Status == domain.StatusApplied || note.Status == domain.StatusCancelled {
		return domain.CreditNote{}, domain.ErrIllegalState
	}

	note.Status = domain.StatusCancelled
	note.UpdatedAt = s.clock.Now()
	if err := s.save(ctx, s.db, note); err != nil {
		return domain.CreditNote{}, err
	}

	s.auditTransition(ctx, note, "creditnote.cancelled")
	return *note, nil
}

type mutator func(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error

func (s *service) transition(ctx context.Context, id string, from, to domain.Status, action string, mutate mutator) (domain.CreditNote, error) {
	note, err := s.load(ctx, id)
	if err != nil {
		return domain.CreditNote{}, err
	}
	if note.Status != from {
		return domain.CreditNote{}, domain.ErrIllegalState
	}

	note.Status = to
	note.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if mutate != nil {
			if err := mutate(ctx, tx, note); err != nil {
				return err
			}
		}
		return s.save(ctx, tx, note)
	})
	if err != nil {
		return domain.CreditNote{}, err
	}

	s.auditTransition(ctx, note, action)
	return *note, nil
}

func (s *service) load(ctx context.Context, id string) (*domain.CreditNote, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}
	noteID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var note domain.CreditNote
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, noteID).
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *service) save(ctx context.Context, tx *gorm.DB, note *domain.CreditNote) error {
	return tx.WithContext(ctx).Omit("Items").Save(note).Error
}

func (s *service) auditTransition(ctx context.Context, note *domain.CreditNote, action string) {
	userID, _ := tenantctx.UserIDFromContext(ctx)
	var actor *snowflake.ID
	if userID != 0 {
		actor = &userID
	}
	target := note.ID.String()
	_ = s.audit.Log(ctx, note.TenantID, auditdomain.ActorTypeUser, actor, action, "credit_note", &target, nil)
}
