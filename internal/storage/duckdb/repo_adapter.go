package duckdb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

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

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("duckdb", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		if cfg.Schema != "" && strings.EqualFold(cfg.Schema, CatalogName(cfg.DSN)) {
			return nil, fmt.Errorf("duckdb: schema %q has the same name as the database catalog; schema-qualified names would be ambiguous", cfg.Schema)
		}
		r, closeFn, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		w := &wrappedRepo{Repository: r, closeFn: closeFn}
		if cfg.Schema != "" {
			if err := w.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", Dialect.QuoteIdent(cfg.Schema))); err != nil {
				w.Close()
				return nil, err
			}
		}
		return w, nil
	})
	storage.RegisterDialect("duckdb", Dialect)
}

// CatalogName returns the catalog DuckDB attaches the database under: the
// file name without its extension, or "memory" for an in-memory database.
func CatalogName(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	if path == "" || path == ":memory:" {
		return "memory"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
