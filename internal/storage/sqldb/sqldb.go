// Package sqldb is the database/sql repository shared by the SQLite, MySQL
// and DuckDB backends. It bulk-loads with multi-row INSERT statements inside
// one transaction per batch.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/znumunz/pram2/internal/ddl"
)

// Options describes a database/sql backend.
type Options struct {
	// Driver is the database/sql driver name.
	Driver string
	DSN    string

	Dialect ddl.Dialect

	// Placeholder renders the n-th (1-based) bind parameter. Nil means "?".
	Placeholder func(n int) string

	// MaxParams caps bind parameters per statement. Zero means 999, the
	// historic SQLite limit.
	MaxParams int

	// MaxOpenConns is applied to the pool when > 0. In-memory SQLite needs 1.
	MaxOpenConns int

	// Convert rewrites a value before it is bound. Nil passes values through.
	Convert func(any) any

	// Init statements run once after the connection is verified.
	Init []string
}

// Repository implements storage.Repository over database/sql.
type Repository struct {
	db  *sql.DB
	opt Options
}

// Open opens and pings the database.
func Open(ctx context.Context, opt Options) (*Repository, error) {
	if strings.TrimSpace(opt.DSN) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", opt.Driver)
	}
	db, err := sql.Open(opt.Driver, opt.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", opt.Driver, err)
	}
	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", opt.Driver, err)
	}
	for _, stmt := range opt.Init {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: init %q: %w", opt.Driver, stmt, err)
		}
	}
	return &Repository{db: db, opt: opt}, nil
}

// DB exposes the pool for queries outside the loader.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

// Exec runs a single statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", r.opt.Driver, err)
	}
	return nil
}

// ExecTx runs stmts in one transaction. Blank statements are skipped.
func (r *Repository) ExecTx(ctx context.Context, stmts ...string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", r.opt.Driver, err)
	}
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: exec: %w", r.opt.Driver, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", r.opt.Driver, err)
	}
	return nil
}

// CopyFrom inserts rows into table in one transaction, packing as many rows
// into each INSERT as the parameter limit allows.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: CopyFrom: columns must not be empty", r.opt.Driver)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	maxParams := r.opt.MaxParams
	if maxParams <= 0 {
		maxParams = 999
	}
	perStmt := max(maxParams/len(columns), 1)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.opt.Driver, err)
	}

	var inserted int64
	args := make([]any, 0, perStmt*len(columns))
	for lo := 0; lo < len(rows); lo += perStmt {
		hi := min(lo+perStmt, len(rows))
		args = args[:0]
		for _, row := range rows[lo:hi] {
			if len(row) != len(columns) {
				_ = tx.Rollback()
				return 0, fmt.Errorf("%s: CopyFrom: row length %d != columns length %d", r.opt.Driver, len(row), len(columns))
			}
			for _, v := range row {
				if r.opt.Convert != nil {
					v = r.opt.Convert(v)
				}
				args = append(args, v)
			}
		}
		if _, err := tx.ExecContext(ctx, r.insertSQL(table, columns, hi-lo), args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: insert into %s: %w", r.opt.Driver, table, err)
		}
		inserted += int64(hi - lo)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.opt.Driver, err)
	}
	return inserted, nil
}

// insertSQL renders INSERT INTO t (c1, c2) VALUES (?, ?), (?, ?) for n rows.
func (r *Repository) insertSQL(table string, columns []string, n int) string {
	d := r.opt.Dialect
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteFQN(table), strings.Join(cols, ", "))
	p := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.placeholder(p))
			p++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

func (r *Repository) placeholder(n int) string {
	if r.opt.Placeholder == nil {
		return "?"
	}
	return r.opt.Placeholder(n)
}

// PlainValue binds decimals as their exact text and widens int to int64.
// Drivers that check named values themselves may skip driver.Valuer.
func PlainValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.String()
	case int:
		return int64(t)
	default:
		return v
	}
}
