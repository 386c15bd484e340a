package store

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"gridpulse/internal/config"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsTable is the table recording applied schema versions.
const MigrationsTable = "schema_version"

// RunMigrations applies all pending schema migrations exactly once, tracked in
// the schema_version table. A failed migration rolls back and the error is
// fatal at startup; it is never retried within the process.
func RunMigrations(db *gorm.DB, c config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errs.StorageError("store", "failed to get underlying sql.DB for migration", err)
	}

	var driver database.Driver
	switch c.Type {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{MigrationsTable: MigrationsTable})
	case "postgres":
		driver, err = migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		driver, err = migratemysql.WithInstance(sqlDB, &migratemysql.Config{MigrationsTable: MigrationsTable})
	default:
		return errs.Newf(errs.KindConfig, "store", "unsupported database type for migration: %s", c.Type)
	}
	if err != nil {
		return errs.StorageError("store", "failed to create migration driver", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errs.StorageError("store", "failed to open embedded migration source", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, c.Type, driver)
	if err != nil {
		return errs.StorageError("store", "failed to initialize migrator", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Schema is up to date, no migrations applied.")
			return nil
		}
		return errs.StorageError("store", "schema migration failed", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errs.StorageError("store", "failed to read schema version after migration", err)
	}
	if dirty {
		return errs.Newf(errs.KindStorage, "store", "schema version %d is dirty after migration", version)
	}
	logger.Infof("Schema migrations completed, current version %d.", version)
	return nil
}
