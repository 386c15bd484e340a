package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gridpulse/internal/config"
	"gridpulse/internal/support/errs"
)

// ConnectionString builds the backend-specific DSN for the configured store.
// The sqlite DSN enables WAL journaling and a busy timeout so readers do not
// block writers' commits and lock contention waits instead of failing.
func ConnectionString(c config.DatabaseConfig) (string, error) {
	switch c.Type {
	case "sqlite":
		if c.Database == "" {
			return "", errs.Newf(errs.KindConfig, "store", "sqlite database path cannot be empty")
		}
		if c.Database == ":memory:" {
			return c.Database, nil
		}
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", c.Database), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode), nil
	case "mysql":
		var authPart string
		if c.User != "" {
			authPart = c.User
			if c.Password != "" {
				authPart = fmt.Sprintf("%s:%s", c.User, c.Password)
			}
			authPart += "@"
		}
		return fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			authPart, c.Host, c.Port, c.Database), nil
	default:
		return "", errs.Newf(errs.KindConfig, "store", "unsupported database type: %s", c.Type)
	}
}

// DialectorFor returns the GORM dialector for the configured backend.
func DialectorFor(c config.DatabaseConfig) (gorm.Dialector, error) {
	connStr, err := ConnectionString(c)
	if err != nil {
		return nil, err
	}
	switch c.Type {
	case "sqlite":
		return sqlite.Open(connStr), nil
	case "postgres":
		return postgres.Open(connStr), nil
	case "mysql":
		return mysql.Open(connStr), nil
	default:
		return nil, errs.Newf(errs.KindConfig, "store", "unsupported database type: %s", c.Type)
	}
}

// Open establishes the GORM connection and applies the bounded pool settings.
// GORM's own logging is kept silent; the application logger reports what matters.
func Open(c config.DatabaseConfig) (*gorm.DB, error) {
	if c.Type == "sqlite" && c.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Database), 0o755); err != nil {
			return nil, errs.StorageError("store", "failed to create database directory", err)
		}
	}

	dialector, err := DialectorFor(c)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errs.StorageError("store", "failed to open database connection", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.StorageError("store", "failed to get underlying sql.DB", err)
	}
	sqlDB.SetMaxOpenConns(c.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.Pool.MaxIdleConns)
	if c.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(c.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}
