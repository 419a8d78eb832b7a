package repositories

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/desertthunder/clientbook/internal/shared"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Dialect captures everything that differs between the supported SQL engines.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	name     string
	numbered bool
	// fold wraps an expression so it compares the way strings.ToLower does.
	fold func(expr string) string
	// exact wraps an expression so it orders by raw bytes.
	exact         func(expr string) string
	truncate      []string
	resetSequence string
}

// SQLite relies on the casefold function registered by [shared.NewDatabase].
var SQLite = Dialect{
	name:  shared.DriverSQLite,
	fold:  func(expr string) string { return "casefold(" + expr + ")" },
	exact: func(expr string) string { return expr },
	truncate: []string{
		"DELETE FROM clients",
		"DELETE FROM sqlite_sequence WHERE name = 'clients'",
	},
}

var Postgres = Dialect{
	name:          shared.DriverPostgres,
	numbered:      true,
	fold:          func(expr string) string { return "LOWER(" + expr + ") COLLATE \"C\"" },
	exact:         func(expr string) string { return expr + " COLLATE \"C\"" },
	truncate:      []string{"TRUNCATE TABLE clients RESTART IDENTITY"},
	resetSequence: "SELECT setval(pg_get_serial_sequence('clients', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM clients",
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	name, err := shared.NormalizeDriver(driver)
	if err != nil {
		return Dialect{}, err
	}
	if name == shared.DriverPostgres {
		return Postgres, nil
	}
	return SQLite, nil
}

// Name is the configured driver name ("sqlite3" or "postgres").
func (d Dialect) Name() string { return d.name }

// Rebind converts '?' placeholders to $1, $2, ... for numbered dialects.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Contains renders a case-insensitive substring predicate on col with one placeholder.
func (d Dialect) Contains(col string) string {
	return d.fold(col) + ` LIKE '%' || ` + d.fold("?") + ` || '%' ESCAPE '\'`
}

// OrderKey renders the ordering expression for a sortable column.
func (d Dialect) OrderKey(col string, folded bool) string {
	if folded {
		return d.fold(col)
	}
	if col == "last_name" {
		return d.exact(col)
	}
	return col
}

// IsUniqueViolation reports whether err is a unique or primary key constraint failure.
func (d Dialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func (d Dialect) IsCheckViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolation
	}
	return false
}

// escapeLike escapes LIKE metacharacters so needle matches literally.
func escapeLike(needle string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(needle)
}
