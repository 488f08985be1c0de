// Package backend opens the configured store backend.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/store/kv/kvdiskv"
	"github.com/nomis52/vetflow/store/kv/kvmap"
	"github.com/nomis52/vetflow/store/kvstore"
	"github.com/nomis52/vetflow/store/sqlstore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the store described by cfg, wrapped with retries. The closer
// releases any underlying connection.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, io.Closer, error) {
	var (
		s      store.Store
		closer io.Closer = nopCloser{}
	)
	switch cfg.Backend {
	case config.StoreMemory:
		s = kvstore.New(kvmap.NewBucket())
	case config.StoreDiskv:
		s = kvstore.New(kvdiskv.New(cfg.Path, "objects"))
	case config.StoreSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:" + filepath.Join(cfg.Path, "vetflow.db")
		}
		db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, dsn)
		if err != nil {
			return nil, nil, err
		}
		s, closer = db, db
	case config.StoreMySQL:
		db, err := sqlstore.Open(ctx, sqlstore.DriverMySQL, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		s, closer = db, db
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	logger.Info("store opened", "backend", cfg.Backend, "path", cfg.Path)
	return store.NewRetrying(s,
		store.WithMaxRetries(uint64(cfg.MaxRetries)),
		store.WithLogger(logger),
	), closer, nil
}
