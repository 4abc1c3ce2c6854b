package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the application owns, parents first.
func Models() []any {
	return []any{
		&projectdomain.Project{},
		&taxdomain.TaxRate{},
		&settingsdomain.Settings{},
		&claimdomain.Claim{},
		&filedomain.ClaimFile{},
		&memberdomain.TeamMember{},
		&activitydomain.Entry{},
	}
}

// RunMigrations applies the embedded SQL migrations to a postgres database.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models on sqlite and mysql, where
// the SQL files do not apply.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureMilestoneIndex(conn)
}

// EnsureMilestoneIndex creates the partial unique index that keeps one
// milestone per project and step. MySQL has no partial indexes and relies on
// the check done at create time.
func EnsureMilestoneIndex(conn *gorm.DB) error {
	if conn.Dialector.Name() == "mysql" {
		return nil
	}
	err := conn.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uq_claims_milestone_step ON claims (project_id, step) WHERE type = 'milestone'").Error
	if err != nil {
		return fmt.Errorf("create milestone index: %w", err)
	}
	return nil
}
