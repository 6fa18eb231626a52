package migrations_test

import (
	"testing"

	"permaudit/internal/database"
	"permaudit/internal/database/migrations"
)

func TestMigrateUp(t *testing.T) {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	// All three tables exist afterwards.
	for _, table := range []string{"queue_entries", "audit_state", "audit_sessions"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := migrations.MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() error = %v", err)
	}
}

func TestCheck(t *testing.T) {
	t.Run("fresh database fails the check", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.Check(db); err == nil {
			t.Error("Check() on unmigrated database should error")
		}
	})

	t.Run("migrated database passes", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := migrations.Check(db); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})
}
