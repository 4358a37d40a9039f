package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/znumunz/pram2/internal/ddl"
	"github.com/znumunz/pram2/internal/logger"
)

// Loadable is a built table ready to be written.
type Loadable interface {
	Name() string
	Definition() ddl.TableDef
	Values() [][]any
}

// TableLoad is the outcome of writing one table.
type TableLoad struct {
	Table    string
	Rows     int64
	Batches  int64
	Duration time.Duration
	Err      error
}

// LoadReport lists one TableLoad per table, in load order.
type LoadReport struct {
	Tables []TableLoad
}

// Rows sums the rows written across tables.
func (r *LoadReport) Rows() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

// Err joins the errors of every table that failed to load.
func (r *LoadReport) Err() error {
	var errs []error
	for _, t := range r.Tables {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Table, t.Err))
		}
	}
	return errors.Join(errs...)
}

// Warehouse writes built tables through a Repository, replacing any previous
// contents so that reruns are idempotent.
type Warehouse struct {
	repo      Repository
	dialect   ddl.Dialect
	schema    string
	batchSize int
	log       logger.Logger
}

// NewWarehouse binds a Repository to its dialect.
func NewWarehouse(repo Repository, dialect ddl.Dialect, schema string, batchSize int, log logger.Logger) *Warehouse {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Warehouse{
		repo:      repo,
		dialect:   dialect,
		schema:    schema,
		batchSize: batchSize,
		log:       log.With("component", "load", "backend", dialect.Name),
	}
}

// Recreate drops def's table if it exists and creates it afresh.
func (w *Warehouse) Recreate(ctx context.Context, def ddl.TableDef) error {
	def = def.WithSchema(w.schema)
	if err := w.repo.Exec(ctx, w.dialect.DropTable(def.FQN)); err != nil {
		return fmt.Errorf("drop %s: %w", def.FQN, err)
	}
	create, err := w.dialect.CreateTable(def)
	if err != nil {
		return err
	}
	if err := w.repo.Exec(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", def.FQN, err)
	}
	return nil
}

// StagingSuffix is appended to a table name while its new contents load.
const StagingSuffix = "__staging"

// ReplaceTable loads t into a staging table and, once every row is in, swaps
// it for the live table. A failed load leaves the live table untouched.
func (w *Warehouse) ReplaceTable(ctx context.Context, t Loadable) TableLoad {
	start := time.Now()
	def := t.Definition()
	res := TableLoad{Table: t.Name()}
	log := w.log.With("table", res.Table)

	stage := def
	stage.FQN = def.FQN + StagingSuffix
	if err := w.Recreate(ctx, stage); err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	stageFQN := stage.WithSchema(w.schema).FQN

	rows := t.Values()
	in := make(chan []any, w.batchSize)
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(in)
		for _, r := range rows {
			select {
			case in <- r:
			case <-loadCtx.Done():
				return
			}
		}
	}()

	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return w.repo.CopyFrom(ctx, stageFQN, columns, batch)
	}
	res.Rows, res.Batches, res.Err = LoadBatches(loadCtx, log, def.ColumnNames(), in, w.batchSize, copyFn)
	if res.Err == nil && res.Rows != int64(len(rows)) {
		res.Err = fmt.Errorf("inserted %d of %d rows", res.Rows, len(rows))
	}
	if res.Err == nil {
		res.Err = w.swap(ctx, stageFQN, def.WithSchema(w.schema).FQN)
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		if err := w.repo.Exec(context.WithoutCancel(ctx), w.dialect.DropTable(stageFQN)); err != nil {
			log.Warn("staging table left behind", "staging", stageFQN, "err", err)
		}
		log.Error("load failed; live table kept", "rows", res.Rows, "err", res.Err)
		return res
	}
	log.Info("loaded", "rows", res.Rows, "batches", res.Batches, "dur", res.Duration.Round(time.Millisecond))
	return res
}

// swap replaces liveFQN with stageFQN, in one transaction when the
// repository supports it.
func (w *Warehouse) swap(ctx context.Context, stageFQN, liveFQN string) error {
	name := liveFQN
	if i := strings.LastIndexByte(liveFQN, '.'); i >= 0 {
		name = liveFQN[i+1:]
	}
	stmts := []string{w.dialect.DropTable(liveFQN), w.dialect.RenameTable(stageFQN, name)}

	if tx, ok := w.repo.(TxExecer); ok {
		if err := tx.ExecTx(ctx, stmts...); err != nil {
			return fmt.Errorf("swap %s: %w", liveFQN, err)
		}
		return nil
	}
	for _, stmt := range stmts {
		if err := w.repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("swap %s: %w", liveFQN, err)
		}
	}
	return nil
}

// LoadAll replaces each table in the given order. Callers pass dimensions
// before facts. A failed table does not stop the others; a canceled context
// does.
func (w *Warehouse) LoadAll(ctx context.Context, tables []Loadable) *LoadReport {
	rep := &LoadReport{Tables: make([]TableLoad, 0, len(tables))}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			rep.Tables = append(rep.Tables, TableLoad{Table: t.Name(), Err: err})
			continue
		}
		rep.Tables = append(rep.Tables, w.ReplaceTable(ctx, t))
	}
	return rep
}
