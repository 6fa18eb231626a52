package treestore

import (
	"fmt"

	"permaudit/internal/audit"
	"permaudit/internal/config"
)

// NewTreeStoreFromConfig creates a tree store based on the configuration.
func NewTreeStoreFromConfig(cfg config.TreeConfig) (audit.TreeStore, error) {
	switch cfg.Type {
	case "filesystem", "":
		return NewFileSystemStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown tree store type: %s", cfg.Type)
	}
}
