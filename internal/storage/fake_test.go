package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/znumunz/pram2/internal/ddl"
)

// fakeRepo records statements and copied rows in memory.
type fakeRepo struct {
	mu      sync.Mutex
	execs   []string
	copies  map[string][][]any
	batches map[string]int

	failExec func(sql string) error
	failCopy func(table string) error
	short    bool // report one row fewer than copied
	closed   bool
	txs      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{copies: map[string][][]any{}, batches: map[string]int{}}
}

func (f *fakeRepo) CopyFrom(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy != nil {
		if err := f.failCopy(table); err != nil {
			return 0, err
		}
	}
	f.copies[table] = append(f.copies[table], rows...)
	f.batches[table]++
	n := int64(len(rows))
	if f.short {
		n--
	}
	return n, nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExec != nil {
		if err := f.failExec(sql); err != nil {
			return err
		}
	}
	f.execs = append(f.execs, sql)
	return nil
}

// ExecTx records stmts as one unit; a failing statement discards the unit.
func (f *fakeRepo) ExecTx(_ context.Context, stmts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExec != nil {
		for _, sql := range stmts {
			if err := f.failExec(sql); err != nil {
				return err
			}
		}
	}
	f.execs = append(f.execs, stmts...)
	f.txs++
	return nil
}

func (f *fakeRepo) Close() { f.closed = true }

// plainRepo hides ExecTx so the warehouse falls back to single statements.
type plainRepo struct {
	f *fakeRepo
}

func (p plainRepo) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return p.f.CopyFrom(ctx, table, columns, rows)
}

func (p plainRepo) Exec(ctx context.Context, sql string) error { return p.f.Exec(ctx, sql) }

func (p plainRepo) Close() { p.f.Close() }

func (f *fakeRepo) execsContaining(s string) []string {
	var out []string
	for _, e := range f.execs {
		if strings.Contains(e, s) {
			out = append(out, e)
		}
	}
	return out
}

var testDialect = ddl.Dialect{
	Name:         "fake",
	QuoteOpen:    `"`,
	QuoteClose:   `"`,
	DropIfExists: true,
	MapType: func(t ddl.ColumnType) string {
		if t == ddl.TypeInteger {
			return "BIGINT"
		}
		return "TEXT"
	},
}

// fakeTable is a Loadable with a fixed definition.
type fakeTable struct {
	name string
	rows [][]any
}

func (t fakeTable) Name() string { return t.name }

func (t fakeTable) Definition() ddl.TableDef {
	return ddl.TableDef{FQN: t.name, Columns: []ddl.ColumnDef{
		{Name: "id", Type: ddl.TypeInteger, PrimaryKey: true},
		{Name: "label", Type: ddl.TypeText, Nullable: true},
	}}
}

func (t fakeTable) Values() [][]any { return t.rows }

func rowsOf(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{int64(i + 1), nil}
	}
	return out
}

var errBoom = errors.New("boom")
