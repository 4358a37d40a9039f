// Package mysql implements the MySQL / MariaDB warehouse backend with
// go-sql-driver/mysql. Rows are loaded with multi-row INSERTs.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/znumunz/pram2/internal/ddl"
	"github.com/znumunz/pram2/internal/storage/sqldb"
)

// Dialect spells DDL for MySQL.
var Dialect = ddl.Dialect{
	Name:         "mysql",
	QuoteOpen:    "`",
	QuoteClose:   "`",
	MapType:      mapType,
	DropIfExists: true,
	Rename: func(d ddl.Dialect, fromFQN, toName string) string {
		to := toName
		if schema := ddl.SchemaOf(fromFQN); schema != "" {
			to = schema + "." + toName
		}
		return "RENAME TABLE " + d.QuoteFQN(fromFQN) + " TO " + d.QuoteFQN(to)
	},
}

func mapType(t ddl.ColumnType) string {
	switch t {
	case ddl.TypeInteger:
		return "BIGINT"
	case ddl.TypeDecimal:
		return "DECIMAL(19,4)"
	case ddl.TypeBool:
		return "BOOLEAN"
	case ddl.TypeDate:
		return "DATE"
	case ddl.TypeTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

// maxParams is the server-side prepared statement placeholder limit.
const maxParams = 65535

// normalizeDSN parses dsn and forces the settings the loader relies on.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = false
	return cfg.FormatDSN(), nil
}

// NewRepository connects to dsn (go-sql-driver format, e.g.
// "etl:secret@tcp(localhost:3306)/dw") and returns a cleanup function.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, func(), error) {
	norm, err := normalizeDSN(dsn)
	if err != nil {
		return nil, nil, err
	}
	r, err := sqldb.Open(ctx, sqldb.Options{
		Driver:    "mysql",
		DSN:       norm,
		Dialect:   Dialect,
		MaxParams: maxParams,
		Convert:   sqldb.PlainValue,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
