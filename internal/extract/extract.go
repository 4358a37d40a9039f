// Package extract reads every configured source into an in-memory table.
// Sources are fetched concurrently. A missing source either aborts the run
// (strict mode) or is reported and left out of the result, so the builders
// that depend on it are skipped.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/znumunz/pram2/internal/config"
	"github.com/znumunz/pram2/internal/datasource"
	"github.com/znumunz/pram2/internal/datasource/file"
	"github.com/znumunz/pram2/internal/datasource/httpds"
	"github.com/znumunz/pram2/internal/logger"
	"github.com/znumunz/pram2/internal/parser"
	csvparser "github.com/znumunz/pram2/internal/parser/csv"
	xlsxparser "github.com/znumunz/pram2/internal/parser/xlsx"
	"github.com/znumunz/pram2/internal/table"
)

// maxSkipLogs bounds per-source logging of skipped rows.
const maxSkipLogs = 5

// Result describes how one source fared.
type Result struct {
	Source   string
	Location string
	Rows     int
	Skipped  int
	Missing  bool
	Duration time.Duration
	Err      error
}

// Report lists one Result per source, ordered by source name.
type Report struct {
	Results []Result
}

// Missing lists the sources that did not exist.
func (r *Report) Missing() []string {
	var out []string
	for _, res := range r.Results {
		if res.Missing {
			out = append(out, res.Source)
		}
	}
	return out
}

// Err joins the errors of every source that could not be read.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Source, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Extractor reads the sources of a pipeline.
type Extractor struct {
	p       config.Pipeline
	log     logger.Logger
	http    *httpds.Client
	workers int
}

// New binds an Extractor to p.
func New(p config.Pipeline, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{
		p:       p,
		log:     log.With("component", "extract"),
		http:    httpds.NewClient(httpds.Config{Timeout: p.Extract.HTTPTimeout, MaxRetries: 3}),
		workers: max(p.Runtime.TransformWorkers, 1),
	}
}

// Source returns the datasource behind s.
func (e *Extractor) Source(s config.Source) (datasource.Source, error) {
	switch s.Kind {
	case "file", "":
		return file.NewLocal(e.p.SourcePath(s)), nil
	case "http":
		return httpds.NewSource(e.http, s.URL), nil
	default:
		return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
	}
}

// Parser returns the parser for s. Per-source options override the shared
// extract settings.
func (e *Extractor) Parser(name string, s config.Source) (parser.Parser, error) {
	nulls := s.Options.StringSlice("null_values")
	if nulls == nil {
		nulls = e.p.Extract.NullValues
	}
	trim := s.Options.Bool("trim_space", true)

	switch s.Format {
	case "csv", "":
		skips := 0
		log := e.log.With("source", name)
		return csvparser.NewParser(csvparser.Options{
			Comma:      s.Options.Rune("comma", ','),
			TrimSpace:  trim,
			LazyQuotes: s.Options.Bool("lazy_quotes", false),
			NullValues: nulls,
			Encoding:   s.Options.String("encoding", e.p.Extract.Encoding),
			Scrub:      scrubRules(s.Options.StringSlice("scrub")),
			OnSkip: func(line int, err error) {
				if skips < maxSkipLogs {
					log.Warn("skipping malformed row", "line", line, "err", err)
				}
				skips++
			},
		}), nil
	case "xlsx":
		return xlsxparser.NewParser(xlsxparser.Options{
			Sheet:      s.Options.String("sheet", ""),
			TrimSpace:  trim,
			NullValues: nulls,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source format %q", s.Format)
	}
}

// scrubRules reads "old=>new" pairs.
func scrubRules(pairs []string) []csvparser.Replacement {
	var out []csvparser.Replacement
	for _, p := range pairs {
		old, repl, ok := strings.Cut(p, "=>")
		if !ok || old == "" {
			continue
		}
		out = append(out, csvparser.Replacement{Old: old, New: repl})
	}
	return out
}

// Extract reads every source. The returned map is keyed by source name and
// holds only the sources that were read. In strict mode the first unreadable
// source cancels the rest and its error is returned.
func (e *Extractor) Extract(ctx context.Context) (map[string]*table.Table, *Report, error) {
	names := make([]string, 0, len(e.p.Sources))
	for n := range e.p.Sources {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		tables  = make(map[string]*table.Table, len(names))
		results = make([]Result, len(names))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, name := range names {
		g.Go(func() error {
			res, t := e.extractOne(gctx, name, e.p.Sources[name])
			results[i] = res
			if res.Err != nil {
				if e.p.Extract.Strict {
					return fmt.Errorf("extract %s: %w", name, res.Err)
				}
				return nil
			}
			mu.Lock()
			tables[name] = t
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	rep := &Report{Results: results}
	if err != nil {
		return nil, rep, err
	}
	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}
	return tables, rep, nil
}

func (e *Extractor) extractOne(ctx context.Context, name string, s config.Source) (Result, *table.Table) {
	start := time.Now()
	res := Result{Source: name}
	log := e.log.With("source", name)

	src, err := e.Source(s)
	if err != nil {
		res.Err = err
		return res, nil
	}
	res.Location = src.Location()

	p, err := e.Parser(name, s)
	if err != nil {
		res.Err = err
		return res, nil
	}

	rc, err := src.Open(ctx)
	if err != nil {
		res.Err = err
		res.Missing = errors.Is(err, datasource.ErrNotFound)
		res.Duration = time.Since(start)
		if res.Missing {
			log.Warn("source missing", "location", res.Location)
		} else {
			log.Error("source unreadable", "location", res.Location, "err", err)
		}
		return res, nil
	}
	defer rc.Close()

	t, skipped, err := p.Parse(rc)
	res.Duration = time.Since(start)
	res.Skipped = skipped
	if err != nil {
		res.Err = fmt.Errorf("parse %s: %w", res.Location, err)
		log.Error("parse failed", "location", res.Location, "err", err)
		return res, nil
	}
	t.Name = name
	res.Rows = t.Len()

	log.Info("extracted",
		"location", res.Location,
		"rows", res.Rows,
		"columns", len(t.Columns),
		"skipped", skipped,
		"dur", res.Duration.Round(time.Millisecond),
	)
	return res, t
}

// Check verifies that every file source exists without reading it. HTTP
// sources are not contacted.
func (e *Extractor) Check(ctx context.Context) *Report {
	names := make([]string, 0, len(e.p.Sources))
	for n := range e.p.Sources {
		names = append(names, n)
	}
	sort.Strings(names)

	rep := &Report{}
	for _, name := range names {
		s := e.p.Sources[name]
		res := Result{Source: name}
		if s.Kind == "http" {
			res.Location = s.URL
			rep.Results = append(rep.Results, res)
			continue
		}
		src, err := e.Source(s)
		if err != nil {
			res.Err = err
			rep.Results = append(rep.Results, res)
			continue
		}
		res.Location = src.Location()
		rc, err := src.Open(ctx)
		if err != nil {
			res.Err = err
			res.Missing = errors.Is(err, datasource.ErrNotFound)
		} else {
			_ = rc.Close()
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}
