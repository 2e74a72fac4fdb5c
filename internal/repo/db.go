// Package repo persists emails, credentials and sync bookkeeping through
// GORM. Functions take the *gorm.DB explicitly so callers control
// transactions. This file opens SQLite or Postgres handles and migrates the
// schema.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// pool bounds the connections database/sql keeps for one handle.
type pool struct {
	maxOpen, maxIdle  int
	idleTime, maxLife time.Duration
}

var (
	postgresPool = pool{maxOpen: 20, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}
	sqlitePool   = pool{maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, maxLife: 30 * time.Minute}

	// sqlitePragmas run on every new SQLite handle. WAL plus a busy timeout
	// lets the API read while a push pass writes.
	sqlitePragmas = []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
)

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}

func (p pool) apply(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.maxLife)
	return nil
}

// isPostgresDSN reports whether dsn names a Postgres server rather than a
// SQLite file.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens the database named by dsn: Postgres for a postgres:// or
// postgresql:// URL, otherwise a SQLite file (an optional "sqlite://" prefix
// is stripped). Query tracing is attached to the returned handle.
func Open(dsn string) (*gorm.DB, error) {
	open := OpenSQLite
	if isPostgresDSN(dsn) {
		open = OpenPostgres
	} else {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("attach tracing: %w", err)
	}
	return db, nil
}

// OpenPostgres connects to Postgres with the server pool settings.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := postgresPool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) the SQLite file at path. The parent
// directory must already exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitePool.apply(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Email{},
		&domain.Credential{},
		&domain.SyncLock{},
		&domain.SyncRun{},
	)
}
