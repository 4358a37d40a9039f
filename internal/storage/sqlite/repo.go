// Package sqlite implements the SQLite warehouse backend on the pure-Go
// modernc.org/sqlite driver. SQLite has no bulk-load API; rows go in as
// multi-row INSERTs inside one transaction per batch.
package sqlite

import (
	"context"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/znumunz/pram2/internal/ddl"
	"github.com/znumunz/pram2/internal/storage/sqldb"
)

// Dialect spells DDL for SQLite.
var Dialect = ddl.Dialect{
	Name:         "sqlite",
	QuoteOpen:    `"`,
	QuoteClose:   `"`,
	MapType:      mapType,
	DropIfExists: true,
}

func mapType(t ddl.ColumnType) string {
	switch t {
	case ddl.TypeInteger, ddl.TypeBool:
		return "INTEGER"
	case ddl.TypeDecimal:
		return "NUMERIC"
	case ddl.TypeDate:
		return "DATE"
	case ddl.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// NewRepository opens the database at dsn, e.g. "data/warehouse.db" or
// "file::memory:", and returns it with a cleanup function.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, func(), error) {
	r, err := sqldb.Open(ctx, sqldb.Options{
		Driver:       "sqlite",
		DSN:          dsn,
		Dialect:      Dialect,
		MaxOpenConns: 1,
		Convert:      convert,
		Init: []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// convert stores timestamps as ISO-8601 text, which SQLite's date functions
// understand. Midnight UTC values are written as plain dates.
func convert(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04:05.000")
}
