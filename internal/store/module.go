package store

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"gridpulse/internal/config"
)

// NewDB opens the configured database and runs schema migrations. A migration
// failure aborts startup.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db, cfg.DB); err != nil {
		return nil, err
	}
	return db, nil
}

// NewStore provides the Store on the migrated database handle.
func NewStore(db *gorm.DB, cfg *config.Config) Store {
	return New(db, cfg.DB)
}

// Module provides the persistent store to the Fx container.
var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Provide(NewStore),
)
