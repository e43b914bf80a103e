package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/easybilling/easybilling/internal/tenant/domain"
	"github.com/easybilling/easybilling/internal/tenant/repository"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/easybilling/easybilling/pkg/db"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tenant{}, domain.ErrInvalidName
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return domain.Tenant{}, domain.ErrInvalidState
	}

	now := time.Now().UTC()
	tenant := domain.Tenant{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      slug.Make(name),
		GSTIN:     strings.TrimSpace(req.GSTIN),
		State:     state,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &tenant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Tenant{}, domain.ErrDuplicateCode
		}
		return domain.Tenant{}, err
	}

	return tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.Tenant{}, domain.ErrInvalidID
	}

	tenant, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *tenant, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) SetConfig(ctx context.Context, req domain.SetConfigRequest) (domain.TenantConfig, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TenantConfig{}, domain.ErrNotFound
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		return domain.TenantConfig{}, domain.ErrInvalidKey
	}

	now := time.Now().UTC()
	cfg := domain.TenantConfig{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Key:       key,
		Value:     req.Value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.InsertConfig(ctx, s.db, &cfg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.TenantConfig{}, domain.ErrDuplicateKey
		}
		return domain.TenantConfig{}, err
	}
	return cfg, nil
}

func (s *Service) UpdateConfig(ctx context.Context, req domain.SetConfigRequest) (domain.TenantConfig, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TenantConfig{}, domain.ErrNotFound
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		return domain.TenantConfig{}, domain.ErrInvalidKey
	}

	affected, err := s.repo.UpdateConfig(ctx, s.db, tenantID, key, req.Value)
	if err != nil {
		return domain.TenantConfig{}, err
	}
	if affected == 0 {
		return domain.TenantConfig{}, domain.ErrNotFound
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, tenantID, key)
	if err != nil {
		return domain.TenantConfig{}, err
	}
	if cfg == nil {
		return domain.TenantConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) GetConfig(ctx context.Context, key string) (domain.TenantConfig, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TenantConfig{}, domain.ErrNotFound
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, tenantID, strings.TrimSpace(key))
	if err != nil {
		return domain.TenantConfig{}, err
	}
	if cfg == nil {
		return domain.TenantConfig{}, domain.ErrNotFound
	}
	return *cfg, nil
}

func (s *Service) ListConfig(ctx context.Context) ([]domain.TenantConfig, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListConfig(ctx, s.db, tenantID)
}

func (s *Service) DeleteConfig(ctx context.Context, key string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrNotFound
	}

	affected, err := s.repo.DeleteConfig(ctx, s.db, tenantID, strings.TrimSpace(key))
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
