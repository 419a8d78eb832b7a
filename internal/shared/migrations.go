package shared

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pressly/goose/v3"
)

//go:embed sql/sqlite/*.sql sql/postgres/*.sql
var migrationFiles embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// migrationTarget returns the goose dialect and embedded directory for a configured driver.
func migrationTarget(driver string) (dialect, dir string, err error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return "", "", err
	}
	if name == DriverPostgres {
		return "postgres", "sql/postgres", nil
	}
	return "sqlite3", "sql/sqlite", nil
}

func withGoose(driver string, logger *log.Logger, fn func(dir string) error) error {
	dialect, dir, err := migrationTarget(driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFiles)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if logger != nil {
		goose.SetLogger(logger)
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	return fn(dir)
}

// RunMigrations applies all pending migrations for driver ("sqlite3" or "postgres").
// goose records applied versions in its goose_db_version table.
func RunMigrations(ctx context.Context, db *sql.DB, driver string, logger *log.Logger) error {
	return withGoose(driver, logger, func(dir string) error {
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(ctx context.Context, db *sql.DB, driver string, logger *log.Logger) error {
	return withGoose(driver, logger, func(dir string) error {
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	})
}

// MigrationVersion returns the current schema version.
func MigrationVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	var version int64
	err := withGoose(driver, nil, func(string) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}
