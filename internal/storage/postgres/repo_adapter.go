package postgres

import (
	"context"
	"fmt"

	"github.com/znumunz/pram2/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds the cleanup returned by NewRepository as Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		w := &wrappedRepo{Repository: r, closeFn: closeFn}
		if cfg.Schema != "" {
			if err := w.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", Dialect.QuoteIdent(cfg.Schema))); err != nil {
				w.Close()
				return nil, fmt.Errorf("create schema %s: %w", cfg.Schema, err)
			}
		}
		return w, nil
	})
	storage.RegisterDialect("postgres", Dialect)
}
