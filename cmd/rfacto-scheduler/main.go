package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfacto/internal/activity"
	"github.com/smallbiznis/rfacto/internal/backup"
	"github.com/smallbiznis/rfacto/internal/claim"
	"github.com/smallbiznis/rfacto/internal/claimfile"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/migration"
	"github.com/smallbiznis/rfacto/internal/observability"
	"github.com/smallbiznis/rfacto/internal/project"
	"github.com/smallbiznis/rfacto/internal/ratelimit"
	"github.com/smallbiznis/rfacto/internal/scheduler"
	"github.com/smallbiznis/rfacto/internal/settings"
	"github.com/smallbiznis/rfacto/internal/storage"
	"github.com/smallbiznis/rfacto/internal/tax"
	"github.com/smallbiznis/rfacto/internal/teammember"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
)

// rfacto-scheduler runs the maintenance jobs without the HTTP API, for
// deployments that keep the API stateless. Job locks go through redis when
// REDIS_ADDR is set so several instances can run side by side.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the jobs
		scheduler.Module,
		ratelimit.Module,
		storage.Module,
		activity.Module,
		backup.Module,

		// Transitive dependencies (backup reads every table)
		project.Module,
		tax.Module,
		settings.Module,
		claim.Module,
		claimfile.Module,
		teammember.Module,

		// No server module!
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
