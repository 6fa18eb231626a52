package publish

import (
	"context"
	"fmt"

	"permaudit/internal/config"
)

// NewPublisherFromConfig creates a Publisher based on the configuration type.
// An empty type returns nil: publishing is optional.
func NewPublisherFromConfig(ctx context.Context, cfg config.PublishConfig) (Publisher, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "memory":
		return NewMemoryPublisher(cfg.Name), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 publisher requires s3_bucket to be set")
		}
		return NewS3Publisher(ctx, cfg)
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem publisher requires fs_root to be set")
		}
		return NewFileSystemPublisher(cfg.Name, cfg.FSRoot)
	default:
		return nil, fmt.Errorf("unknown publisher type: %s", cfg.Type)
	}
}
