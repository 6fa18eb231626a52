package database_test

import (
	"testing"

	"permaudit/internal/config"
	"permaudit/internal/database"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("sqlite database is migrated and usable from a fresh file", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}

		db, err := database.NewDatabaseFromConfig(cfg, "host-1")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err != nil {
			t.Fatalf("CheckMigrations() on fresh database = %v, want nil", err)
		}
		if _, err := db.CreateAuditSession("Start", "/srv/share"); err != nil {
			t.Errorf("CreateAuditSession() on fresh database = %v", err)
		}
	})

	t.Run("sqlite database survives a reopen", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}

		first, err := database.NewDatabaseFromConfig(cfg, "host-1")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		if _, err := first.CreateAuditSession("Start", ""); err != nil {
			t.Fatalf("CreateAuditSession() error = %v", err)
		}
		if err := first.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		second, err := database.NewDatabaseFromConfig(cfg, "host-1")
		if err != nil {
			t.Fatalf("reopening database: %v", err)
		}
		defer second.Close()

		if err := second.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() after reopen = %v", err)
		}
		max, err := second.MaxAuditSessionID()
		if err != nil {
			t.Fatalf("MaxAuditSessionID() error = %v", err)
		}
		if max != 1 {
			t.Errorf("MaxAuditSessionID() after reopen = %d, want 1", max)
		}
	})

	t.Run("memory database is migrated", func(t *testing.T) {
		db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, "host-1")
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() error = %v", err)
		}
		defer db.Close()

		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() on memory database = %v", err)
		}
	})

	t.Run("unknown type errors", func(t *testing.T) {
		if _, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "etcd"}, "host-1"); err == nil {
			t.Error("NewDatabaseFromConfig() with unknown type should error")
		}
	})
}
