// Package metrics provides the Prometheus instrumentation for the farm
// record-keeping operations.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the Prometheus collectors the handlers and services feed.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EntriesRecordedTotal     prometheus.Counter
	EntriesRejectedTotal     *prometheus.CounterVec
	DispatchesCompletedTotal prometheus.Counter
	LowStockEventsTotal      prometheus.Counter
	ImportRowsTotal          *prometheus.CounterVec
	ReportParsesTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the application metrics and registers them on the given
// registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register farm metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poultry_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poultry_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "route"},
	)

	m.EntriesRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poultry_daily_entries_recorded_total",
			Help: "Total number of daily entries accepted",
		},
	)

	m.EntriesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poultry_daily_entries_rejected_total",
			Help: "Total number of daily entries rejected by reason",
		},
		[]string{"reason"}, // reason: validation, insufficient_feed, duplicate
	)

	m.DispatchesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poultry_dispatches_completed_total",
			Help: "Total number of bird dispatches completed",
		},
	)

	m.LowStockEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poultry_feed_low_stock_events_total",
			Help: "Total number of entries accepted with the feed stock at or below the warning threshold",
		},
	)

	m.ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poultry_import_rows_total",
			Help: "Total number of CSV import rows by result",
		},
		[]string{"result"}, // result: imported, skipped
	)

	m.ReportParsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poultry_report_parses_total",
			Help: "Total number of AI report parses by outcome",
		},
		[]string{"outcome"}, // outcome: draft, clarification, error
	)
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordEntryAccepted records an accepted daily entry, optionally with a
// low-stock condition.
func (m *Metrics) RecordEntryAccepted(lowStock bool) {
	m.EntriesRecordedTotal.Inc()
	if lowStock {
		m.LowStockEventsTotal.Inc()
	}
}

// RecordEntryRejected records a rejected daily entry.
func (m *Metrics) RecordEntryRejected(reason string) {
	m.EntriesRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordDispatchCompleted records a completed dispatch.
func (m *Metrics) RecordDispatchCompleted() {
	m.DispatchesCompletedTotal.Inc()
}

// RecordImportRows records the per-row outcome counts of one CSV import.
func (m *Metrics) RecordImportRows(imported, skipped int) {
	m.ImportRowsTotal.WithLabelValues("imported").Add(float64(imported))
	m.ImportRowsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordReportParse records one AI report-parse outcome.
func (m *Metrics) RecordReportParse(outcome string) {
	m.ReportParsesTotal.WithLabelValues(outcome).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.HTTPRequestsTotal.Collect(ch)
	m.HTTPRequestDuration.Collect(ch)
	m.EntriesRecordedTotal.Collect(ch)
	m.EntriesRejectedTotal.Collect(ch)
	m.DispatchesCompletedTotal.Collect(ch)
	m.LowStockEventsTotal.Collect(ch)
	m.ImportRowsTotal.Collect(ch)
	m.ReportParsesTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.HTTPRequestsTotal.Describe(ch)
	m.HTTPRequestDuration.Describe(ch)
	m.EntriesRecordedTotal.Describe(ch)
	m.EntriesRejectedTotal.Describe(ch)
	m.DispatchesCompletedTotal.Describe(ch)
	m.LowStockEventsTotal.Describe(ch)
	m.ImportRowsTotal.Describe(ch)
	m.ReportParsesTotal.Describe(ch)
}
