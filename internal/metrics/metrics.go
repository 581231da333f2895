// Package metrics defines the Prometheus collectors for the dataset
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's collectors. It implements
// core.IngestObserver.
type Metrics struct {
	ingests        *prometheus.CounterVec
	rowsSkipped    prometheus.Counter
	ingestDuration prometheus.Histogram
	reports        prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equipstats_ingests_total",
			Help: "Ingestion attempts by final status.",
		}, []string{"status"}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "equipstats_rows_skipped_total",
			Help: "Data rows skipped during parsing due to missing required fields.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "equipstats_ingest_duration_seconds",
			Help:    "End-to-end ingestion latency from receipt to persisted dataset.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "equipstats_reports_rendered_total",
			Help: "PDF reports successfully rendered.",
		}),
	}

	reg.MustRegister(m.ingests, m.rowsSkipped, m.ingestDuration, m.reports)
	return m
}

// ObserveIngest records the outcome of one ingestion attempt.
func (m *Metrics) ObserveIngest(status string, duration time.Duration, rowsSkipped int) {
	m.ingests.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(duration.Seconds())
	if rowsSkipped > 0 {
		m.rowsSkipped.Add(float64(rowsSkipped))
	}
}

// IncReportRendered counts a successfully rendered report.
func (m *Metrics) IncReportRendered() {
	m.reports.Inc()
}
