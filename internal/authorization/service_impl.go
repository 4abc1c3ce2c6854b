package authorization

import (
	"context"
	_ "embed"
	"errors"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// ObjectAPI is the single object guarded by the role levels.
const ObjectAPI = "api"

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid_role")
)

type Service interface {
	// Authorize fails with ErrForbidden when role is below min.
	Authorize(ctx context.Context, role Role, min Role) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc activitydomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc activitydomain.Service
}

// NewEnforcer loads the role policy from the database and seeds the level
// hierarchy admin > user > lecture.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role Role, min Role) error {
	if min.Rank() == 0 {
		return ErrInvalidRole
	}
	if role.Rank() == 0 {
		s.auditDenied(ctx, role, min)
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(role.subject(), ObjectAPI, string(min))
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, role, min)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, role Role, min Role) {
	s.log.Debug("authorization denied",
		zap.String("role", string(role)),
		zap.String("required", string(min)),
	)
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, activitydomain.ActionAuthorizationDenied, "authorization", "", map[string]any{
		"role":     string(role),
		"required": string(min),
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, role := range Roles {
		if _, err := enforcer.AddPolicy(role.subject(), ObjectAPI, string(role)); err != nil {
			return err
		}
	}
	links := [][2]Role{
		{RoleAdmin, RoleUser},
		{RoleUser, RoleLecture},
	}
	for _, link := range links {
		if _, err := enforcer.AddGroupingPolicy(link[0].subject(), link[1].subject()); err != nil {
			return err
		}
	}
	return nil
}
