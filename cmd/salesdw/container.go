// This file wires extract → transform → load for one run. It depends on the
// storage abstraction only; backends register themselves through the blank
// import in main.go.
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/znumunz/pram2/internal/config"
	"github.com/znumunz/pram2/internal/extract"
	"github.com/znumunz/pram2/internal/logger"
	"github.com/znumunz/pram2/internal/metrics"
	"github.com/znumunz/pram2/internal/storage"
	"github.com/znumunz/pram2/internal/table"
	"github.com/znumunz/pram2/internal/transformer"
)

// thisMany bounds the distinct error messages kept per aggregate.
const thisMany = 3

// Function variables used to introduce test seams.
var (
	newRepositoryFn = storage.New

	extractFn = func(ctx context.Context, p config.Pipeline, log logger.Logger) (map[string]*table.Table, *extract.Report, error) {
		return extract.New(p, log).Extract(ctx)
	}

	nowFn = func() time.Time { return time.Now().UTC() }
)

// counters holds run-wide row statistics.
type counters struct {
	extracted atomic.Int64 // rows read from sources
	skipped   atomic.Int64 // source rows the parsers could not use
	built     atomic.Int64 // rows in built warehouse tables
	dropped   atomic.Int64 // duplicates, null keys and join mismatches
	loaded    atomic.Int64 // rows written to the warehouse
	batches   atomic.Int64 // insert batches flushed
}

// runSummary is what a run reports back to the CLI.
type runSummary struct {
	RunID     string
	Extract   *extract.Report
	Transform *transformer.Report
	Load      *storage.LoadReport
	Duration  time.Duration
}

// tableRow is one printable line of a summary.
type tableRow struct {
	Table  string
	Status string
	Rows   int64
	Note   string
}

// Tables merges transform and load outcomes into one line per table, in load
// order.
func (s *runSummary) Tables() []tableRow {
	if s.Transform == nil {
		return nil
	}
	loads := map[string]storage.TableLoad{}
	if s.Load != nil {
		for _, l := range s.Load.Tables {
			loads[l.Table] = l
		}
	}
	outcomes := append([]transformer.Outcome(nil), s.Transform.Outcomes...)
	sort.SliceStable(outcomes, func(a, b int) bool {
		ka, kb := outcomes[a].Table.Kind(), outcomes[b].Table.Kind()
		if ka != kb {
			return ka < kb
		}
		return outcomes[a].Table < outcomes[b].Table
	})

	out := make([]tableRow, 0, len(outcomes))
	for _, o := range outcomes {
		row := tableRow{Table: o.Table.Name(), Status: string(o.Status), Rows: int64(o.Rows)}
		if o.Err != nil {
			row.Note = o.Err.Error()
		}
		if l, ok := loads[row.Table]; ok {
			if l.Err != nil {
				row.Status, row.Note = "load-failed", l.Err.Error()
			} else {
				row.Status, row.Rows = "loaded", l.Rows
			}
		}
		out = append(out, row)
	}
	return out
}

// runner executes runs of one pipeline.
type runner struct {
	p      config.Pipeline
	log    logger.Logger
	runID  string
	dates  *transformer.DateCache
	dryRun bool
}

func newRunner(p config.Pipeline, log logger.Logger) *runner {
	if log == nil {
		log = logger.Discard()
	}
	id := uuid.NewString()
	return &runner{
		p:     p,
		log:   log.With("run_id", id, "job", p.Job),
		runID: id,
		dates: newDateCache(),
	}
}

func newDateCache() *transformer.DateCache { return transformer.NewDateCache(4) }

// transformOptions maps the pipeline configuration onto transformer options.
func transformOptions(p config.Pipeline) (transformer.Options, error) {
	start, end, err := p.Transform.DateDimension.Range()
	if err != nil {
		return transformer.Options{}, fmt.Errorf("date dimension range: %w", err)
	}
	in := p.Transform.Inputs
	opts := transformer.Options{
		Inputs: transformer.Inputs{
			Customers:    in.Customers,
			Employees:    in.Employees,
			Products:     in.Products,
			Suppliers:    in.Suppliers,
			Orders:       in.Orders,
			OrderDetails: in.OrderDetails,
		},
		DateStart:            start,
		DateEnd:              end,
		FiscalYearStartMonth: p.Transform.DateDimension.FiscalYearStartMonth,
		DiscountUnit:         transformer.DiscountUnit(p.Transform.DiscountUnit),
		DatetimeLayout:       p.Transform.DatetimeLayout,
		DiscontinuedToken:    p.Transform.DiscontinuedToken,
		DedupPolicy:          p.Transform.DedupPolicy,
		Workers:              p.Runtime.TransformWorkers,
	}
	if err := opts.Validate(); err != nil {
		return transformer.Options{}, err
	}
	return opts, nil
}

// run executes one extract → transform → load pass.
//
// Sources that are missing or unreadable are logged and their dependent
// tables skipped, unless extract.strict is set. Tables that fail to build
// are reported; the remaining tables are still loaded when
// runtime.allow_partial is true. The returned error is non-nil when the run
// as a whole should be considered failed.
func (r *runner) run(ctx context.Context) (*runSummary, error) {
	start := nowFn()
	sum := &runSummary{RunID: r.runID}
	defer func() { sum.Duration = nowFn().Sub(start) }()

	ctx = logger.ContextWithLogger(ctx, r.log)
	var stats counters
	agg := newErrAgg(thisMany)

	opts, err := transformOptions(r.p)
	if err != nil {
		return sum, err
	}

	r.log.Info("run started", "storage", r.p.Storage.Kind, "sources", len(r.p.Sources), "dry_run", r.dryRun)

	// 1) Extract.
	stepStart := time.Now()
	raw, xrep, err := extractFn(ctx, r.p, r.log)
	metrics.RecordStep(r.p.Job, "extract", err, time.Since(stepStart))
	sum.Extract = xrep
	if xrep != nil {
		for _, res := range xrep.Results {
			stats.extracted.Add(int64(res.Rows))
			stats.skipped.Add(int64(res.Skipped))
			if res.Err != nil {
				agg.add(fmt.Sprintf("extract %s: %v", res.Source, res.Err))
			}
		}
	}
	if err != nil {
		return sum, fmt.Errorf("extract: %w", err)
	}

	// 2) Transform.
	stepStart = time.Now()
	t := transformer.New(opts, r.log, transformer.WithDateCache(r.dates))
	ds, trep := t.Transform(ctx, raw)
	transformErr := trep.Err()
	metrics.RecordStep(r.p.Job, "transform", transformErr, time.Since(stepStart))
	sum.Transform = trep
	for _, o := range trep.Outcomes {
		stats.built.Add(int64(o.Rows))
		stats.dropped.Add(int64(o.Stats.Duplicates + o.Stats.NullKeys))
		if j := o.Stats.Join; j != nil {
			stats.dropped.Add(int64(j.UnmatchedOrders + j.OrphanLineItems))
		}
		if o.Status == transformer.StatusFailed {
			agg.add(fmt.Sprintf("transform %s: %v", o.Table.Name(), o.Err))
		}
		metrics.RecordTable(r.p.Job, "build", o.Table.Name(), string(o.Status), int64(o.Rows), o.Duration)
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if transformErr != nil && !r.p.Runtime.AllowPartial {
		r.finish(&stats, agg)
		return sum, fmt.Errorf("transform: %w", transformErr)
	}

	// 3) Load.
	if r.dryRun {
		r.log.Info("dry run; skipping load", "tables", ds.Len())
		r.finish(&stats, agg)
		return sum, nil
	}
	stepStart = time.Now()
	lrep, err := r.load(ctx, ds)
	if err == nil {
		err = lrep.Err()
	}
	metrics.RecordStep(r.p.Job, "load", err, time.Since(stepStart))
	sum.Load = lrep
	if lrep != nil {
		for _, l := range lrep.Tables {
			stats.loaded.Add(l.Rows)
			stats.batches.Add(l.Batches)
			status := "succeeded"
			if l.Err != nil {
				status = "failed"
				agg.add(fmt.Sprintf("load %s: %v", l.Table, l.Err))
			}
			metrics.RecordTable(r.p.Job, "load", l.Table, status, l.Rows, l.Duration)
		}
	}
	r.finish(&stats, agg)
	if err != nil {
		return sum, fmt.Errorf("load: %w", err)
	}
	return sum, nil
}

// dateDimension builds and loads dim_date alone.
func (r *runner) dateDimension(ctx context.Context) (*runSummary, error) {
	start := nowFn()
	sum := &runSummary{RunID: r.runID}
	defer func() { sum.Duration = nowFn().Sub(start) }()

	opts, err := transformOptions(r.p)
	if err != nil {
		return sum, err
	}
	// Without raw tables only dim_date is buildable.
	ds, trep := transformer.New(opts, r.log, transformer.WithDateCache(r.dates)).Transform(ctx, nil)
	sum.Transform = &transformer.Report{}
	for _, o := range trep.Outcomes {
		if o.Table == transformer.DimDate {
			sum.Transform.Outcomes = append(sum.Transform.Outcomes, o)
		}
	}
	if err := sum.Transform.Err(); err != nil {
		return sum, err
	}
	lrep, err := r.load(ctx, ds)
	sum.Load = lrep
	if err != nil {
		return sum, err
	}
	return sum, lrep.Err()
}

// load writes every table of ds, dimensions first.
func (r *runner) load(ctx context.Context, ds *transformer.Dataset) (*storage.LoadReport, error) {
	sc := r.p.Storage
	dialect, err := storage.DialectFor(sc.Kind)
	if err != nil {
		return nil, err
	}
	repo, err := newRepositoryFn(ctx, storage.Config{Kind: sc.Kind, DSN: sc.DB.DSN, Schema: sc.DB.Schema})
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", sc.Kind, err)
	}
	defer repo.Close()

	tables := ds.Tables()
	loadables := make([]storage.Loadable, len(tables))
	for i, t := range tables {
		loadables[i] = t
	}
	wh := storage.NewWarehouse(repo, dialect, sc.DB.Schema, r.p.Runtime.BatchSize, r.log)
	return wh.LoadAll(ctx, loadables), nil
}

func (r *runner) finish(c *counters, agg *errAgg) {
	for _, name := range []string{"extracted", "skipped", "built", "dropped", "loaded"} {
		metrics.RecordRow(r.p.Job, name, c.get(name))
	}
	metrics.RecordBatches(r.p.Job, c.batches.Load())
	logErrorSummary(r.log, agg)
	logGlobalSummary(r.log, c)
}

func (c *counters) get(name string) int64 {
	switch name {
	case "extracted":
		return c.extracted.Load()
	case "skipped":
		return c.skipped.Load()
	case "built":
		return c.built.Load()
	case "dropped":
		return c.dropped.Load()
	case "loaded":
		return c.loaded.Load()
	}
	return 0
}

func logGlobalSummary(log logger.Logger, c *counters) {
	built, loaded := c.built.Load(), c.loaded.Load()
	log.Info("summary",
		"extracted", c.extracted.Load(),
		"skipped", c.skipped.Load(),
		"built", built,
		"dropped", c.dropped.Load(),
		"loaded", loaded,
		"batches", c.batches.Load(),
	)
	if loaded > 0 && loaded != built {
		log.Warn("row accounting mismatch", "built", built, "loaded", loaded, "delta", built-loaded)
	}
}

func logErrorSummary(log logger.Logger, agg *errAgg) {
	if agg.count == 0 {
		return
	}
	log.Warn("errors", "count", agg.count, "distinct", len(agg.buckets), "first", strings.Join(agg.first, "; "))
}

// errAgg keeps the first few error messages and a count per message.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}
