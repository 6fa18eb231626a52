package seal

import (
	"fmt"

	"permaudit/internal/config"
)

// NewSealerFromConfig creates a Sealer based on the configuration type. Type
// "none" (the default) returns nil: pages are left plaintext.
func NewSealerFromConfig(cfg config.SealConfig) (Sealer, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeSealer(cfg), nil
	case "test":
		return NewTestSealer(), nil
	default:
		return nil, fmt.Errorf("unknown seal type: %q", cfg.Type)
	}
}
