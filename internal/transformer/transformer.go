// Package transformer reshapes raw source tables into the sales star schema:
// four dimensions (customers, employees, products, suppliers), a generated
// date dimension and the sales fact table.
//
// Each builder is independent. Transform runs them concurrently; a builder
// whose input is missing is skipped, a builder that fails is reported and
// the others carry on. Nothing here touches the raw tables it is given.
package transformer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/znumunz/pram2/internal/logger"
	"github.com/znumunz/pram2/internal/table"
)

// Status is the outcome of one table build.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome describes how one output table fared.
type Outcome struct {
	Table    TableID
	Status   Status
	Rows     int
	Checksum uint64
	Duration time.Duration
	Stats    BuildStats
	Err      error
}

// Report collects the outcome of every table a run considered.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) with(s Status) []TableID {
	var out []TableID
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o.Table)
		}
	}
	return out
}

// Succeeded lists the tables that were built.
func (r *Report) Succeeded() []TableID { return r.with(StatusSucceeded) }

// Skipped lists the tables whose inputs were missing.
func (r *Report) Skipped() []TableID { return r.with(StatusSkipped) }

// Failed lists the tables whose builder returned an error.
func (r *Report) Failed() []TableID { return r.with(StatusFailed) }

// Outcome returns the outcome recorded for id.
func (r *Report) Outcome(id TableID) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Table == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Err joins the errors of all failed tables, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", o.Table.Name(), o.Err))
		}
	}
	return errors.Join(errs...)
}

// Transformer runs the builders. Its configuration is fixed at construction.
type Transformer struct {
	opts  Options
	log   logger.Logger
	now   func() time.Time
	dates *DateCache
}

// Option customizes a Transformer.
type Option func(*Transformer)

// WithClock replaces the processing-time source used for audit columns.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

// WithDateCache shares a date dimension cache between transformers.
func WithDateCache(c *DateCache) Option {
	return func(t *Transformer) { t.dates = c }
}

// New returns a Transformer for opts.
func New(opts Options, log logger.Logger, options ...Option) *Transformer {
	if log == nil {
		log = logger.Discard()
	}
	t := &Transformer{
		opts:  opts,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		dates: NewDateCache(4),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Options returns the configuration the transformer was built with.
func (t *Transformer) Options() Options { return t.opts }

type job struct {
	id     TableID
	inputs []string
	build  func(stamp time.Time) (*Table, BuildStats, error)
}

func (t *Transformer) jobs(raw map[string]*table.Table) []job {
	in := t.opts.Inputs
	dim := func(id TableID, name string, fn func(*table.Table, Options, time.Time) (*Table, BuildStats, error)) job {
		return job{id: id, inputs: []string{name}, build: func(stamp time.Time) (*Table, BuildStats, error) {
			return fn(raw[name], t.opts, stamp)
		}}
	}
	return []job{
		dim(DimCustomers, in.Customers, BuildCustomers),
		dim(DimEmployees, in.Employees, BuildEmployees),
		dim(DimProducts, in.Products, BuildProducts),
		dim(DimSuppliers, in.Suppliers, BuildSuppliers),
		{id: DimDate, build: func(time.Time) (*Table, BuildStats, error) {
			return BuildDateDimension(t.opts, t.dates)
		}},
		{id: FactSales, inputs: []string{in.Orders, in.OrderDetails}, build: func(stamp time.Time) (*Table, BuildStats, error) {
			return BuildSales(raw[in.Orders], raw[in.OrderDetails], t.opts, stamp)
		}},
	}
}

// Transform builds every table whose inputs are present in raw. raw maps
// source names (as configured in Options.Inputs) to extracted tables. The
// returned Dataset holds the successful tables; the Report covers all six.
// An empty raw map yields a dataset containing only dim_date.
func (t *Transformer) Transform(ctx context.Context, raw map[string]*table.Table) (*Dataset, *Report) {
	if raw == nil {
		raw = map[string]*table.Table{}
	}
	stamp := t.now()
	ds := newDataset()
	rep := &Report{}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if t.opts.Workers > 0 {
		g.SetLimit(t.opts.Workers)
	}

	record := func(o Outcome, tbl *Table) {
		mu.Lock()
		defer mu.Unlock()
		rep.Outcomes = append(rep.Outcomes, o)
		if tbl != nil {
			ds.put(tbl)
		}
	}

	for _, j := range t.jobs(raw) {
		if missing := missingInputs(raw, j.inputs); len(missing) > 0 {
			err := &table.MissingInputError{Output: j.id.Name(), Inputs: missing}
			t.log.Warn("skipping table", "table", j.id.Name(), "missing", missing)
			record(Outcome{Table: j.id, Status: StatusSkipped, Err: err}, nil)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(Outcome{Table: j.id, Status: StatusFailed, Err: err}, nil)
				return nil
			}
			start := time.Now()
			tbl, stats, err := j.build(stamp)
			o := Outcome{Table: j.id, Duration: time.Since(start), Stats: stats}
			if err != nil {
				o.Status, o.Err = StatusFailed, err
				t.log.Error("table build failed", "table", j.id.Name(), "err", err)
				record(o, nil)
				return nil
			}
			o.Status = StatusSucceeded
			o.Rows = tbl.Len()
			o.Checksum = tbl.Checksum()
			t.logBuilt(o)
			record(o, tbl)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(rep.Outcomes, func(a, b int) bool { return rep.Outcomes[a].Table < rep.Outcomes[b].Table })
	return ds, rep
}

func (t *Transformer) logBuilt(o Outcome) {
	t.log.Info("table built",
		"table", o.Table.Name(),
		"rows", o.Rows,
		"duplicates", o.Stats.Duplicates,
		"null_keys", o.Stats.NullKeys,
		"checksum", fmt.Sprintf("%016x", o.Checksum),
		"elapsed", o.Duration.Truncate(time.Microsecond),
	)
	if j := o.Stats.Join; j != nil && j.Any() {
		t.log.Warn("join dropped rows",
			"table", o.Table.Name(),
			"unmatched_orders", j.UnmatchedOrders,
			"orphan_line_items", j.OrphanLineItems,
		)
	}
}

func missingInputs(raw map[string]*table.Table, names []string) []string {
	var out []string
	for _, n := range names {
		if raw[n] == nil {
			out = append(out, n)
		}
	}
	return out
}
