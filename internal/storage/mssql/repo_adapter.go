package mssql

import (
	"context"
	"fmt"

	"github.com/znumunz/pram2/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		w := &wrappedRepo{Repository: r, closeFn: closeFn}
		if cfg.Schema != "" {
			if err := w.Exec(ctx, createSchemaSQL(cfg.Schema)); err != nil {
				w.Close()
				return nil, fmt.Errorf("create schema %s: %w", cfg.Schema, err)
			}
		}
		return w, nil
	})
	storage.RegisterDialect("mssql", Dialect)
}

// wrappedRepo adapts *mssql.Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
