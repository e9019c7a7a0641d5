package objectstore

import (
	"context"
	"fmt"

	"github.com/northstar-market/concierge/internal/config"
)

// Build constructs the ObjectStore backend named by cfg.Backend, following
// the same env-driven "memory" | "s3" switch internal/sessionstore and
// internal/eventlog use for their own backend selection.
func Build(ctx context.Context, cfg config.ObjectStoreConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("objectstore: unknown backend %q", cfg.Backend)
	}
}
