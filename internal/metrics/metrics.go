// Package metrics provides Prometheus collectors for catalog retrieval and
// import.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Import actions.
const (
	ActionInserted = "inserted"
	ActionReplaced = "replaced"
)

// Batch outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Metrics holds the catalog collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RecordsImported    *prometheus.CounterVec
	ImportBatches      *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RecordsImported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pubs_records_imported_total",
			Help: "Records written by bulk import, by action",
		}, []string{"action"}),
		ImportBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pubs_import_batches_total",
			Help: "Import batches, by outcome",
		}, []string{"outcome"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pubs_validation_failures_total",
			Help: "Rejected records, by offending field",
		}, []string{"field"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pubs_fetch_duration_seconds",
			Help:    "Duration of filtered fetches including pagination",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordImported counts one written record.
func (m *Metrics) RecordImported(action string) {
	if m == nil {
		return
	}
	m.RecordsImported.WithLabelValues(action).Inc()
}

// BatchFinished counts one import batch.
func (m *Metrics) BatchFinished(outcome string) {
	if m == nil {
		return
	}
	m.ImportBatches.WithLabelValues(outcome).Inc()
}

// ValidationFailed counts one rejected record.
func (m *Metrics) ValidationFailed(field string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(field).Inc()
}

// ObserveFetch records the duration of a fetch.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveFetch(start time.Time) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(time.Since(start).Seconds())
}

// Push sends every collector to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
