package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stockbt/internal/config"
)

// OpenRunStore opens the run store selected by cfg.Driver.
func OpenRunStore(ctx context.Context, cfg config.Storage) (RunStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite dir: %w", err)
			}
		}
		return NewSQLiteStore(cfg.SQLitePath)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
