package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/easybilling/easybilling/internal/audit/domain"
	"github.com/easybilling/easybilling/internal/clock"
	"github.com/easybilling/easybilling/internal/securitygroup/domain"
	"github.com/easybilling/easybilling/internal/tenantctx"
	"github.com/easybilling/easybilling/pkg/db"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Enforcer *casbin.SyncedEnforcer
	Audit    auditdomain.Service `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	enforcer *casbin.SyncedEnforcer
	audit    auditdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("securitygroup.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		enforcer: p.Enforcer,
		audit:    p.Audit,
	}
}

func groupSubject(groupID snowflake.ID) string { return fmt.Sprintf("group:%s", groupID) }
func userSubject(userID snowflake.ID) string   { return fmt.Sprintf("user:%s", userID) }
func tenantDomain(tenantID snowflake.ID) string {
	return fmt.Sprintf("tenant:%s", tenantID)
}

// splitPermission maps "invoice.create" to object "invoice" and action
// "invoice.create"; the full permission string stays the casbin action.
func splitPermission(p domain.Permission) (object, action string, ok bool) {
	object, rest, found := strings.Cut(string(p), ".")
	return object, string(p), found && object != "" && rest != ""
}

func (s *service) CreateGroup(ctx context.Context, req domain.CreateGroupRequest) (domain.SecurityGroup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.SecurityGroup{}, domain.ErrInvalidTenant
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.SecurityGroup{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	group := domain.SecurityGroup{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, p := range req.Permissions {
		group.Permissions = append(group.Permissions, domain.GroupPermission{
			ID:         s.genID.Generate(),
			GroupID:    group.ID,
			Permission: p,
		})
	}

	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.SecurityGroup{}, domain.ErrDuplicateGroup
		}
		return domain.SecurityGroup{}, err
	}

	if err := s.syncPolicies(tenantID, &group); err != nil {
		return domain.SecurityGroup{}, err
	}
	return group, nil
}

func (s *service) UpdateGroupPermissions(ctx context.Context, id string, permissions []domain.Permission) (domain.SecurityGroup, error) {
	tenantID, group, err := s.load(ctx, id)
	if err != nil {
		return domain.SecurityGroup{}, err
	}

	rows := make([]domain.GroupPermission, 0, len(permissions))
	for _, p := range permissions {
		rows = append(rows, domain.GroupPermission{
			ID:         s.genID.Generate(),
			GroupID:    group.ID,
			Permission: p,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&domain.GroupPermission{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return tx.Model(group).Update("updated_at", s.clock.Now()).Error
	})
	if err != nil {
		return domain.SecurityGroup{}, err
	}

	group.Permissions = rows
	if err := s.syncPolicies(tenantID, group); err != nil {
		return domain.SecurityGroup{}, err
	}
	return *group, nil
}

func (s *service) DeleteGroup(ctx context.Context, id string) error {
	tenantID, group, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", group.ID).Delete(&domain.GroupPermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND group_id = ?", tenantID, group.ID).Delete(&domain.UserSecurityGroup{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
	if err != nil {
		return err
	}

	dom := tenantDomain(tenantID)
	if _, err := s.enforcer.RemoveFilteredPolicy(0, groupSubject(group.ID), dom); err != nil {
		return err
	}
	_, err = s.enforcer.RemoveFilteredGroupingPolicy(1, groupSubject(group.ID), dom)
	return err
}

func (s *service) ListGroups(ctx context.Context) ([]domain.SecurityGroup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}

	var groups []domain.SecurityGroup
	err := s.db.WithContext(ctx).
		Preload("Permissions").
		Where("tenant_id = ?", tenantID).
		Order("name asc").
		Find(&groups).Error
	return groups, err
}

func (s *service) AssignUser(ctx context.Context, groupID string, userID snowflake.ID) error {
	tenantID, group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}

	assignedBy, _ := tenantctx.UserIDFromContext(ctx)
	assignment := domain.UserSecurityGroup{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		UserID:     userID,
		GroupID:    group.ID,
		AssignedBy: assignedBy,
		AssignedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
	}

	_, err = s.enforcer.AddGroupingPolicy(userSubject(userID), groupSubject(group.ID), tenantDomain(tenantID))
	return err
}

func (s *service) UnassignUser(ctx context.Context, groupID string, userID snowflake.ID) error {
	tenantID, group, err := s.load(ctx, groupID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND group_id = ?", tenantID, userID, group.ID).
		Delete(&domain.UserSecurityGroup{}).Error
	if err != nil {
		return err
	}

	_, err = s.enforcer.RemoveGroupingPolicy(userSubject(userID), groupSubject(group.ID), tenantDomain(tenantID))
	return err
}

func (s *service) ListUserGroups(ctx context.Context, userID snowflake.ID) ([]domain.SecurityGroup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}

	var groups []domain.SecurityGroup
	err := s.db.WithContext(ctx).
		Preload("Permissions").
		Joins("JOIN user_security_groups usg ON usg.group_id = security_groups.id").
		Where("usg.tenant_id = ? AND usg.user_id = ?", tenantID, userID).
		Find(&groups).Error
	return groups, err
}

func (s *service) Authorize(ctx context.Context, userID snowflake.ID, object, action string) error {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}
	if userID == 0 {
		return domain.ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(userSubject(userID), tenantDomain(tenantID), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, tenantID, userID, object, action)
		return domain.ErrForbidden
	}
	return nil
}

// syncPolicies rewrites the group's casbin policy rows to match its
// permission set.
func (s *service) syncPolicies(tenantID snowflake.ID, group *domain.SecurityGroup) error {
	dom := tenantDomain(tenantID)
	subject := groupSubject(group.ID)

	if _, err := s.enforcer.RemoveFilteredPolicy(0, subject, dom); err != nil {
		return err
	}
	for _, perm := range group.Permissions {
		object, action, ok := splitPermission(perm.Permission)
		if !ok {
			s.log.Warn("skipping malformed permission",
				zap.String("permission", string(perm.Permission)))
			continue
		}
		if _, err := s.enforcer.AddPolicy(subject, dom, object, action); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, id string) (snowflake.ID, *domain.SecurityGroup, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok {
		return 0, nil, domain.ErrInvalidTenant
	}
	groupID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return 0, nil, domain.ErrInvalidID
	}

	var group domain.SecurityGroup
	err = s.db.WithContext(ctx).
		Preload("Permissions").
		Where("tenant_id = ? AND id = ?", tenantID, groupID).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil, domain.ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return tenantID, &group, nil
}

func (s *service) auditDenied(ctx context.Context, tenantID, userID snowflake.ID, object, action string) {
	if s.audit == nil {
		return
	}
	target := "capability"
	_ = s.audit.Log(ctx, tenantID, auditdomain.ActorTypeUser, &userID, "authorization.denied", "authorization", &target, map[string]any{
		"object": object,
		"action": action,
	})
}
