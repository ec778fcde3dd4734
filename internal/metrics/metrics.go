// Package metrics exposes the provider's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aasindex"

// Scan outcomes.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
	scansRunning prometheus.Gauge
	endpoints    prometheus.Gauge
	cache        *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed endpoint scans by result.",
		}, []string{"endpoint", "result"}),
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of endpoint scans.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"endpoint"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_events_total",
			Help:      "Reconciliation events applied to the index.",
		}, []string{"endpoint", "kind"}),
		scansRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_in_progress",
			Help:      "Scans currently running.",
		}),
		endpoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoints",
			Help:      "Registered endpoints.",
		}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_cache_requests_total",
			Help:      "Document content lookups by cache outcome.",
		}, []string{"outcome"}),
	}
}

// ScanStarted marks a scan as running and returns a func that records its
// outcome.
func (m *Metrics) ScanStarted(endpoint string) func(result string) {
	if m == nil {
		return func(string) {}
	}
	m.scansRunning.Inc()
	start := time.Now()
	return func(result string) {
		m.scansRunning.Dec()
		m.scans.WithLabelValues(endpoint, result).Inc()
		m.scanDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Event(endpoint, kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(endpoint, kind).Inc()
}

func (m *Metrics) SetEndpoints(n int) {
	if m == nil {
		return
	}
	m.endpoints.Set(float64(n))
}

// CacheLookup counts a content cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cache.WithLabelValues(outcome).Inc()
}

// Forget drops the per-endpoint series of a removed endpoint.
func (m *Metrics) Forget(endpoint string) {
	if m == nil {
		return
	}
	m.scans.DeletePartialMatch(prometheus.Labels{"endpoint": endpoint})
	m.scanDuration.DeletePartialMatch(prometheus.Labels{"endpoint": endpoint})
	m.events.DeletePartialMatch(prometheus.Labels{"endpoint": endpoint})
}
