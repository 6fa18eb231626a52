package checkpoint

import (
	"database/sql"
	"fmt"

	"permaudit/internal/audit"
	"permaudit/internal/config"
)

// NewStoreFromConfig creates a CheckpointStore based on the config type.
// db is the shared metadata database; it is only used for type=sqlite.
func NewStoreFromConfig(cfg config.CheckpointConfig, db *sql.DB) (audit.CheckpointStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if db == nil {
			return nil, fmt.Errorf("sqlite checkpoint store requires a database")
		}
		return NewSQLiteStore(db), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint store type: %s", cfg.Type)
	}
}
