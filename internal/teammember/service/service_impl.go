package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/clock"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParams struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  memberdomain.Repository
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	repo     memberdomain.Repository
	validate *validator.Validate
}

func NewService(p serviceParams) memberdomain.Service {
	return &Service{
		log:      p.Log.Named("teammember.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) List(ctx context.Context) ([]memberdomain.TeamMember, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, req memberdomain.CreateRequest) (*memberdomain.TeamMember, error) {
	email, err := s.normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	member := &memberdomain.TeamMember{
		Email:     email,
		Name:      trimmed(req.Name),
		Role:      string(role),
		Active:    req.Active == nil || *req.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, memberdomain.ErrDuplicateEmail
		}
		return nil, err
	}
	s.log.Info("team member created", zap.String("email", member.Email), zap.String("role", member.Role))
	return member, nil
}

func (s *Service) Update(ctx context.Context, req memberdomain.UpdateRequest) (*memberdomain.TeamMember, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrNotFound
	}

	if strings.TrimSpace(req.Email) != "" {
		email, err := s.normalizeEmail(req.Email)
		if err != nil {
			return nil, err
		}
		member.Email = email
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}
	member.Name = trimmed(req.Name)
	member.Role = string(role)
	member.Active = req.Active == nil || *req.Active
	member.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, memberdomain.ErrDuplicateEmail
		}
		return nil, err
	}
	return member, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, parsed)
	if err != nil {
		return err
	}
	if !deleted {
		return memberdomain.ErrNotFound
	}
	return nil
}

func (s *Service) RoleFor(ctx context.Context, email string) (authorization.Role, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return authorization.RoleLecture, nil
	}
	member, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if member == nil || !member.Active {
		return authorization.RoleLecture, nil
	}
	role, ok := authorization.ParseRole(member.Role)
	if !ok {
		return authorization.RoleUser, nil
	}
	return role, nil
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) normalizeEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", memberdomain.ErrInvalidEmail
	}
	return email, nil
}

func parseRole(raw string) (authorization.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return authorization.RoleUser, nil
	}
	role, ok := authorization.ParseRole(raw)
	if !ok {
		return "", memberdomain.ErrInvalidRole
	}
	return role, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, memberdomain.ErrInvalidID
	}
	return id, nil
}
