package migration

import (
	"github.com/smallbiznis/rfacto/internal/config"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date for the configured database.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	dbCfg := db.FromAppConfig(cfg)
	if dbCfg.Type != "postgres" {
		log.Info("auto migrating schema", zap.String("db_type", dbCfg.Type))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
