// Package duckdb implements an embedded DuckDB warehouse backend, handy for
// local analytics over the star schema. The DSN is a database file path; an
// empty path is not accepted so runs are never silently lost in memory.
package duckdb

import (
	"context"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the "duckdb" driver

	"github.com/znumunz/pram2/internal/ddl"
	"github.com/znumunz/pram2/internal/storage/sqldb"
)

// Dialect spells DDL for DuckDB.
var Dialect = ddl.Dialect{
	Name:         "duckdb",
	QuoteOpen:    `"`,
	QuoteClose:   `"`,
	MapType:      mapType,
	DropIfExists: true,
}

func mapType(t ddl.ColumnType) string {
	switch t {
	case ddl.TypeInteger:
		return "BIGINT"
	case ddl.TypeDecimal:
		return "DECIMAL(18,4)"
	case ddl.TypeBool:
		return "BOOLEAN"
	case ddl.TypeDate:
		return "DATE"
	case ddl.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// NewRepository opens the DuckDB file at dsn.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, func(), error) {
	r, err := sqldb.Open(ctx, sqldb.Options{
		Driver:       "duckdb",
		DSN:          dsn,
		Dialect:      Dialect,
		MaxParams:    30000,
		MaxOpenConns: 1,
		Convert:      sqldb.PlainValue,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
