package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestLatency     *prometheus.HistogramVec
	ReasoningLatency   prometheus.Histogram
	ReasoningFailures  *prometheus.CounterVec
	ValidationStatus   *prometheus.CounterVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	AuditAppendFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glassbank_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		ReasoningLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "glassbank_reasoning_duration_seconds",
			Help:    "Generative model call latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
		ReasoningFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "glassbank_reasoning_failures_total",
			Help: "Generative model failures by kind.",
		}, []string{"kind"}),
		ValidationStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "glassbank_attribution_validation_total",
			Help: "Attribute reconciliation outcomes by status.",
		}, []string{"status"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "glassbank_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "glassbank_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
		AuditAppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "glassbank_audit_append_failures_total",
			Help: "Audit records that could not be persisted.",
		}),
	}
}

// ObserveValidation records a reconciliation outcome. Nil-safe so services can
// run without metrics in tests.
func (m *Metrics) ObserveValidation(status string) {
	if m == nil {
		return
	}
	m.ValidationStatus.WithLabelValues(status).Inc()
}

// ObserveCache records a cache lookup outcome. Nil-safe.
func (m *Metrics) ObserveCache(name string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(name).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(name).Inc()
}

// ObserveReasoning records a model call duration in seconds. Nil-safe.
func (m *Metrics) ObserveReasoning(seconds float64) {
	if m == nil {
		return
	}
	m.ReasoningLatency.Observe(seconds)
}

// IncReasoningFailure counts a model failure by kind. Nil-safe.
func (m *Metrics) IncReasoningFailure(kind string) {
	if m == nil {
		return
	}
	m.ReasoningFailures.WithLabelValues(kind).Inc()
}

// IncAuditAppendFailure counts a dropped audit record. Nil-safe.
func (m *Metrics) IncAuditAppendFailure() {
	if m == nil {
		return
	}
	m.AuditAppendFailures.Inc()
}
