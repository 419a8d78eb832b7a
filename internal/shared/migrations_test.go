package shared

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "clients.db")
}

func TestMigrationRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, newTestDB(t))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		version, err := MigrationVersion(ctx, db, DriverSQLite)
		if err != nil {
			t.Fatalf("failed to read version: %v", err)
		}
		if version != 2 {
			t.Errorf("expected version 2, got %d", version)
		}

		for _, table := range []string{"clients", "contracts"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM contracts LIMIT 1"); err == nil {
			t.Error("contracts table should be dropped after the first rollback")
		}
		if _, err := db.Exec("SELECT 1 FROM clients LIMIT 1"); err != nil {
			t.Errorf("clients table should survive the first rollback: %v", err)
		}

		if err := RollbackMigration(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM clients LIMIT 1"); err == nil {
			t.Error("clients table should be dropped after rollback")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, newTestDB(t))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}
		if err := RunMigrations(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
	})

	t.Run("Passport Constraints", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, newTestDB(t))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		insert := `INSERT INTO clients (last_name, first_name, middle_name, passport_series, passport_number,
			birth_date, phone, email, address) VALUES ('A', 'B', 'C', ?, ?, '1990-01-01', '+79990000000', 'a@b.cd', 'x')`

		if _, err := db.Exec(insert, "1234", "567890"); err != nil {
			t.Fatalf("valid insert failed: %v", err)
		}
		if _, err := db.Exec(insert, "1234", "567890"); err == nil {
			t.Error("duplicate passport should violate uq_passport")
		}
		if _, err := db.Exec(insert, "12a4", "567891"); err == nil {
			t.Error("non-digit series should violate the CHECK constraint")
		}
	})

	t.Run("Contract Constraints", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, newTestDB(t))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(ctx, db, DriverSQLite, nil); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		insert := `INSERT INTO contracts (number, client_id, principal, status, start_date, end_date)
			VALUES (?, 1, ?, ?, ?, ?)`

		if _, err := db.Exec(insert, "C-1", "1000.50", "Active", "2024-01-01", "2024-12-31"); err != nil {
			t.Fatalf("valid insert failed: %v", err)
		}
		if _, err := db.Exec(insert, "C-1", "10", "Active", "2024-01-01", "2024-12-31"); err == nil {
			t.Error("duplicate number should violate uq_contract_number")
		}
		if _, err := db.Exec(insert, "C-2", "10", "Pending", "2024-01-01", "2024-12-31"); err == nil {
			t.Error("unknown status should violate the CHECK constraint")
		}
		if _, err := db.Exec(insert, "C-3", "10", "Draft", "2024-12-31", "2024-01-01"); err == nil {
			t.Error("end before start should violate ck_contract_dates")
		}
		if _, err := db.Exec(insert, "C-4", "-1", "Draft", "2024-01-01", "2024-01-01"); err == nil {
			t.Error("negative principal should violate the CHECK constraint")
		}
	})

	t.Run("Unknown Driver", func(t *testing.T) {
		if err := RunMigrations(ctx, nil, "oracle", nil); err == nil {
			t.Error("expected error for unknown driver")
		}
	})
}

func TestCasefoldFunction(t *testing.T) {
	db, err := NewDatabase(DriverSQLite, newTestDB(t))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	var got string
	if err := db.QueryRow("SELECT casefold(?)", "ИваНОВ Ab").Scan(&got); err != nil {
		t.Fatalf("casefold query failed: %v", err)
	}
	if got != "иванов ab" {
		t.Errorf("casefold() = %q, want %q", got, "иванов ab")
	}
}
