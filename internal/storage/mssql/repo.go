// Package mssql implements the SQL Server warehouse backend. Batches go
// through the go-mssqldb bulk copy API inside one transaction each.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/shopspring/decimal"

	"github.com/znumunz/pram2/internal/ddl"
)

// Dialect spells DDL for SQL Server.
var Dialect = ddl.Dialect{
	Name:       "mssql",
	QuoteOpen:  "[",
	QuoteClose: "]",
	MapType:    mapType,
	Rename:     renameSQL,
}

// renameSQL renames through sp_rename, which takes the new name without a
// schema.
func renameSQL(d ddl.Dialect, fromFQN, toName string) string {
	return fmt.Sprintf("EXEC sp_rename N'%s', N'%s'",
		strings.ReplaceAll(d.QuoteFQN(fromFQN), "'", "''"),
		strings.ReplaceAll(toName, "'", "''"))
}

func mapType(t ddl.ColumnType) string {
	switch t {
	case ddl.TypeInteger:
		return "BIGINT"
	case ddl.TypeDecimal:
		return "DECIMAL(19,4)"
	case ddl.TypeBool:
		return "BIT"
	case ddl.TypeDate:
		return "DATE"
	case ddl.TypeTimestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, dsn string) (*Repository, func(), error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

// CopyFrom bulk-inserts rows into table.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("prepare bulk %s: %w", table, err)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %d values for %d columns", i, len(row), len(columns))
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = toCopyVal(v)
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// ExecTx runs stmts in one transaction.
func (r *Repository) ExecTx(ctx context.Context, stmts ...string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin tx: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// createSchemaSQL creates schema unless it exists. CREATE SCHEMA must be the
// only statement in its batch, hence EXEC.
func createSchemaSQL(schema string) string {
	lit := strings.ReplaceAll(schema, "'", "''")
	stmt := strings.ReplaceAll("CREATE SCHEMA "+Dialect.QuoteIdent(schema), "'", "''")
	return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'%s')", lit, stmt)
}

// toCopyVal converts values the bulk copy encoder does not accept.
func toCopyVal(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.String()
	case int:
		return int64(t)
	default:
		return v
	}
}
