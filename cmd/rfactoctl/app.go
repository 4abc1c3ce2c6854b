package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfacto/internal/activity"
	"github.com/smallbiznis/rfacto/internal/actorcontext"
	"github.com/smallbiznis/rfacto/internal/authorization"
	"github.com/smallbiznis/rfacto/internal/backup"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	"github.com/smallbiznis/rfacto/internal/claim"
	"github.com/smallbiznis/rfacto/internal/claimfile"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/export"
	"github.com/smallbiznis/rfacto/internal/importer"
	"github.com/smallbiznis/rfacto/internal/logger"
	"github.com/smallbiznis/rfacto/internal/migration"
	"github.com/smallbiznis/rfacto/internal/project"
	"github.com/smallbiznis/rfacto/internal/ratelimit"
	"github.com/smallbiznis/rfacto/internal/settings"
	"github.com/smallbiznis/rfacto/internal/storage"
	"github.com/smallbiznis/rfacto/internal/tax"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/internal/teammember"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// services are the domain services the database commands drive.
type services struct {
	fx.In

	Log           *zap.Logger
	Taxes         taxdomain.Service
	Backup        backupdomain.Service
	Exporter      export.Exporter
	PaymentClaims *importer.PaymentClaims
}

// withServices assembles the domain modules against the configured database,
// runs fn and stops the app. The context carries the CLI actor so writes land
// in the activity log.
func withServices(parent context.Context, fn func(ctx context.Context, s services) error) error {
	var svc services
	app := fx.New(
		fx.NopLogger,
		fx.Supply(logger.Level(logLevel)),
		config.Module,
		logger.Module,
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		ratelimit.Module,
		storage.Module,
		activity.Module,
		project.Module,
		tax.Module,
		settings.Module,
		claim.Module,
		claimfile.Module,
		teammember.Module,
		backup.Module,
		export.Module,
		importer.Module,

		fx.Invoke(func(s services) { svc = s }),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	ctx := actorcontext.WithIdentity(parent, actorcontext.Identity{
		Email:  actor,
		Role:   string(authorization.RoleAdmin),
		Source: "cli",
	})
	return fn(ctx, svc)
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(3)
}
