// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrissnell/hydromonitor/internal/alerts"
	"github.com/chrissnell/hydromonitor/internal/constants"
	"github.com/chrissnell/hydromonitor/internal/types"
)

const namespace = constants.AppName

// Metrics holds every collector on a private registry so that several
// monitors (tests, mostly) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	entriesAppended *prometheus.CounterVec
	imports         *prometheus.CounterVec
	rowsSkipped     prometheus.Counter
	feedFailures    *prometheus.CounterVec
	activeAlerts    *prometheus.GaugeVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entriesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_appended_total",
			Help:      "Measurement entries appended to the store, by plant.",
		}, []string{"plant"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "CSV imports attempted, by result.",
		}, []string{"result"}),
		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_skipped_total",
			Help:      "CSV rows dropped during import.",
		}),
		feedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_failures_total",
			Help:      "Failed reads of an external feed.",
		}, []string{"feed"}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts in the most recent report, by source.",
		}, []string{"source"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.entriesAppended,
		m.imports,
		m.rowsSkipped,
		m.feedFailures,
		m.activeAlerts,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EntriesAppended(p types.Plant, n int) {
	m.entriesAppended.WithLabelValues(p.String()).Add(float64(n))
}

// ImportFinished records one import. rejected is true for imports refused as
// a whole.
func (m *Metrics) ImportFinished(rejected bool, skipped int) {
	result := "ok"
	if rejected {
		result = "rejected"
	}
	m.imports.WithLabelValues(result).Inc()
	m.rowsSkipped.Add(float64(skipped))
}

// FeedFailed implements alerts.Observer.
func (m *Metrics) FeedFailed(feed string) {
	m.feedFailures.WithLabelValues(feed).Inc()
}

// AlertsEvaluated implements alerts.Observer.
func (m *Metrics) AlertsEvaluated(source alerts.Source, count int) {
	m.activeAlerts.Reset()
	m.activeAlerts.WithLabelValues(string(source)).Set(float64(count))
}

// ObserveHTTP records the duration of one request.
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}
