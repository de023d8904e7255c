package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gunturawaludins/mkbd-new/internal/config"
)

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (TableStore, error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		return NewPostgresStore(ctx, PostgresOptions{
			DSN:      cfg.DSN,
			MaxConns: cfg.MaxConns,
			Logger:   logger,
		})
	case config.StorageMemory, "":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
}
