// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A run is a batch job with no scrape endpoint, so the
// collected registry is pushed once at Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/znumunz/pram2/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	grouping   map[string]string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // etl_step_total
	stepDuration  *prometheus.SummaryVec // etl_step_duration_seconds
	recordCounter *prometheus.CounterVec // etl_records_total
	batchCounter  prometheus.Counter     // etl_batches_total

	tableOutcomes *prometheus.CounterVec   // etl_table_outcomes_total
	tableRows     *prometheus.CounterVec   // etl_table_rows_total
	tableDuration *prometheus.HistogramVec // etl_table_duration_seconds
}

// Option customizes a Backend.
type Option func(*Backend)

// WithGrouping adds a Pushgateway grouping label, e.g. the run id.
func WithGrouping(name, value string) Option {
	return func(b *Backend) { b.grouping[name] = value }
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string, opts ...Option) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "salesdw"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		grouping:   map[string]string{},
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline steps in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (extracted, skipped, built, dropped, loaded).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Insert batches flushed to the warehouse.",
		}),
		tableOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TableOutcomes,
			Help: "Warehouse table outcomes by stage and status.",
		}, []string{"stage", "table", "status"}),
		tableRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TableRows,
			Help: "Rows per warehouse table by stage.",
		}, []string{"stage", "table", "status"}),
		tableDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.TableDurations,
			Help:    "Time spent per warehouse table and stage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage", "table", "status"}),
	}
	for _, o := range opts {
		o(b)
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"batch counter":  b.batchCounter,
		"table outcomes": b.tableOutcomes,
		"table rows":     b.tableRows,
		"table duration": b.tableDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter routes known metric names to their collectors and ignores the
// rest. The job label is carried by the Pushgateway grouping key.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batchCounter.Add(delta)
	case metrics.TableOutcomes:
		b.tableOutcomes.WithLabelValues(labels["stage"], labels["table"], labels["status"]).Add(delta)
	case metrics.TableRows:
		b.tableRows.WithLabelValues(labels["stage"], labels["table"], labels["status"]).Add(delta)
	}
}

// ObserveHistogram records step and table durations.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.TableDurations:
		b.tableDuration.WithLabelValues(labels["stage"], labels["table"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	for k, v := range b.grouping {
		p = p.Grouping(k, v)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
