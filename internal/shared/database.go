package shared

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Supported database drivers as named in configuration.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteDriverName is the go-sqlite3 driver registered with the casefold SQL function.
const sqliteDriverName = "sqlite3_clients"

var registerOnce sync.Once

// registerSQLite registers a go-sqlite3 driver whose connections expose casefold(text),
// the same lower-casing used by in-memory filtering, so LIKE and ORDER BY agree with it.
func registerSQLite() {
	registerOnce.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("casefold", strings.ToLower, true)
			},
		})
	})
}

// DriverName resolves a configured driver to the database/sql driver name.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite":
		registerSQLite()
		return sqliteDriverName, nil
	case DriverPostgres, "postgresql", "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, driver)
	}
}

// NormalizeDriver returns the canonical configuration name for driver.
func NormalizeDriver(driver string) (string, error) {
	name, err := DriverName(driver)
	if err != nil {
		return "", err
	}
	if name == "pgx" {
		return DriverPostgres, nil
	}
	return DriverSQLite, nil
}

// NewDatabase opens a connection pool for driver ("sqlite3" or "postgres") at dsn.
// For SQLite the dsn is a file path; ":memory:" only works with a single connection.
// Returns an open database connection or an error if connection fails.
func NewDatabase(driver, dsn string) (*sql.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Non-positive values leave the database/sql defaults in place.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
