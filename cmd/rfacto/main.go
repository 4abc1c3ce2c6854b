package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/internal/migration"
	"github.com/smallbiznis/rfacto/internal/observability"
	"github.com/smallbiznis/rfacto/internal/scheduler"
	"github.com/smallbiznis/rfacto/internal/seed"
	"github.com/smallbiznis/rfacto/internal/server"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domain modules it registers
		server.Module,

		seed.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
