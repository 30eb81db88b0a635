//go:build !wasm

package store

import (
	"context"
	"fmt"
)

// New creates a store for native builds.
// ":memory:" returns a MemoryStore, a postgres:// URL connects to Postgres
// and any other path opens SQLite.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	switch {
	case cfg.Path == MemoryPath:
		return NewMemory(), nil
	case IsPostgresURL(cfg.Path):
		return NewPostgres(context.Background(), cfg.Path)
	}
	return NewSQLite(cfg.Path)
}
