package report

import (
	"fmt"

	"permaudit/internal/audit"
	"permaudit/internal/config"
)

// NewPageStoreFromConfig creates a PageStore implementation based on the
// report config type.
func NewPageStoreFromConfig(cfg config.ReportConfig) (audit.PageStore, error) {
	switch cfg.Type {
	case "filesystem", "":
		if cfg.ReportDir == "" {
			return nil, fmt.Errorf("filesystem report store requires report_dir to be set")
		}
		return NewFileSystemPageStore(cfg.ReportDir)
	case "memory":
		return NewMemoryPageStore(), nil
	default:
		return nil, fmt.Errorf("unknown report store type: %s", cfg.Type)
	}
}
