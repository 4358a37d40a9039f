package mysql

import (
	"context"
	"fmt"

	"github.com/znumunz/pram2/internal/storage"
	"github.com/znumunz/pram2/internal/storage/sqldb"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*sqldb.Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		w := &wrappedRepo{Repository: r, closeFn: closeFn}
		if cfg.Schema != "" {
			stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", Dialect.QuoteIdent(cfg.Schema))
			if err := w.Exec(ctx, stmt); err != nil {
				w.Close()
				return nil, err
			}
		}
		return w, nil
	})
	storage.RegisterDialect("mysql", Dialect)
}
