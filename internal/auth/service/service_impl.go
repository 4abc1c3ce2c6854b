package service

import (
	"context"
	"slices"
	"strings"

	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/config"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Verifier authdomain.Verifier
	Members  memberdomain.Service
}

type Service struct {
	log            *zap.Logger
	devMode        bool
	requiredScopes []string
	verifier       authdomain.Verifier
	roles          authdomain.RoleSource
}

func NewService(p Params) authdomain.Service {
	return New(p.Log, p.Cfg, p.Verifier, p.Members)
}

func New(log *zap.Logger, cfg config.Config, verifier authdomain.Verifier, roles authdomain.RoleSource) *Service {
	svc := &Service{
		log:            log.Named("auth.service"),
		devMode:        cfg.DevMode,
		requiredScopes: cfg.AuthRequiredScopes,
		verifier:       verifier,
		roles:          roles,
	}
	if svc.devMode {
		svc.log.Warn("dev mode enabled, every request is accepted as " + authdomain.DevEmail)
	}
	return svc
}

func (s *Service) DevMode() bool { return s.devMode }

func (s *Service) Authenticate(ctx context.Context, header string) (*authdomain.Identity, error) {
	if s.devMode {
		return &authdomain.Identity{Email: authdomain.DevEmail, Name: "Dev User", Role: authorization.RoleAdmin}, nil
	}

	token, ok := BearerToken(header)
	if !ok {
		return nil, authdomain.ErrMissingBearer
	}
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, authdomain.ErrEmailMissing
	}
	for _, scope := range s.requiredScopes {
		if !slices.Contains(claims.Scopes, scope) {
			return nil, authdomain.ErrInsufficientScopes
		}
	}

	role, err := s.roles.RoleFor(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	return &authdomain.Identity{
		Email:   claims.Email,
		Name:    name,
		Role:    role,
		Subject: claims.Subject,
	}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
