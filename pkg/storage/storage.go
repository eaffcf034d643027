// Package storage provides the public factory for the stores the engine
// persists through, keeping the dialect implementations internal.
//
// Example:
//
//	store, err := storage.Open(ctx, types.Config{
//	    Backend:          types.BackendSQLite,
//	    ConnectionString: "data/tracker.db",
//	})
//	defer store.Close()
package storage

import (
	"context"

	"github.com/mesh-intelligence/tracker/internal/catalog"
	"github.com/mesh-intelligence/tracker/internal/postgres"
	"github.com/mesh-intelligence/tracker/internal/sqldb"
	"github.com/mesh-intelligence/tracker/internal/sqlite"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Open validates cfg and opens the store it names.
func Open(ctx context.Context, cfg types.Config) (types.Store, error) {
	return open(ctx, cfg)
}

// OpenCatalog opens the store named by cfg and creates the catalog schema
// in it when missing.
func OpenCatalog(ctx context.Context, cfg types.Config) (types.Store, error) {
	s, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := catalog.Migrate(ctx, s.DB(), cfg.Backend); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func open(ctx context.Context, cfg types.Config) (*sqldb.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case types.BackendPostgres:
		return postgres.Open(ctx, cfg.ConnectionString)
	default:
		return sqlite.Open(cfg.ConnectionString)
	}
}
