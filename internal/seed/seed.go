// Package seed brings an empty database to a usable state at startup: the
// default tax rates, the settings row and a first admin team member.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/rfacto/internal/actorcontext"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const systemActor = "system@rfacto"

var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(register),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Members  memberdomain.Repository
	TaxRepo  taxdomain.Repository
	Taxes    taxdomain.Service
	Settings settingsdomain.Service
}

type Seeder struct {
	log          *zap.Logger
	clock        clock.Clock
	adminEmail   string
	seedTaxRates bool
	members      memberdomain.Repository
	taxRepo      taxdomain.Repository
	taxes        taxdomain.Service
	settings     settingsdomain.Service
}

func New(p Params) *Seeder {
	return &Seeder{
		log:          p.Log.Named("seed"),
		clock:        p.Clock,
		adminEmail:   strings.ToLower(strings.TrimSpace(p.Cfg.BootstrapAdminEmail)),
		seedTaxRates: p.Cfg.SeedTaxRates,
		members:      p.Members,
		taxRepo:      p.TaxRepo,
		taxes:        p.Taxes,
		settings:     p.Settings,
	}
}

// register runs the seed once migrations have been applied.
func register(lc fx.Lifecycle, s *Seeder) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Ensure(ctx)
		},
	})
}

// Ensure is idempotent. Tax rates come first so the settings row picks up a
// default province.
func (s *Seeder) Ensure(ctx context.Context) error {
	ctx = actorcontext.WithIdentity(ctx, actorcontext.Identity{
		Email:  systemActor,
		Role:   string(authorization.RoleAdmin),
		Source: "system",
	})

	if err := s.ensureTaxRates(ctx); err != nil {
		return err
	}
	if _, err := s.settings.Ensure(ctx); err != nil {
		return err
	}
	return s.ensureAdmin(ctx)
}

func (s *Seeder) ensureTaxRates(ctx context.Context) error {
	if !s.seedTaxRates {
		return nil
	}
	existing, err := s.taxRepo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = s.taxes.Seed(ctx)
	return err
}

func (s *Seeder) ensureAdmin(ctx context.Context) error {
	if s.adminEmail == "" {
		return nil
	}
	if !strings.Contains(s.adminEmail, "@") {
		return errors.New("BOOTSTRAP_ADMIN_EMAIL is not an email address")
	}

	member, err := s.members.FindByEmail(ctx, s.adminEmail)
	if err != nil {
		return err
	}
	if member != nil {
		if member.Role != string(authorization.RoleAdmin) || !member.Active {
			s.log.Warn("bootstrap admin exists without the admin role, leaving it unchanged",
				zap.String("email", s.adminEmail),
				zap.String("role", member.Role),
				zap.Bool("active", member.Active),
			)
		}
		return nil
	}

	now := s.clock.Now().UTC()
	if err := s.members.Create(ctx, &memberdomain.TeamMember{
		Email:     s.adminEmail,
		Role:      string(authorization.RoleAdmin),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", zap.String("email", s.adminEmail))
	return nil
}
