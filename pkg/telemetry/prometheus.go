package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for one client instance. All
// methods are safe on a nil receiver so instrumentation stays optional.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	blocksTotal     *prometheus.CounterVec

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by its own registry, so two
// clients in one process never collide on registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_client_requests_total",
				Help: "Total governed requests by operation and status",
			},
			[]string{"operation", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axonflow_client_request_duration_seconds",
				Help:    "Governed request latency in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_client_retries_total",
				Help: "Retry attempts performed beyond the first try",
			},
			[]string{"operation"},
		),

		blocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axonflow_client_policy_blocks_total",
				Help: "Requests denied by governance policy",
			},
			[]string{"operation"},
		),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axonflow_client_cache_hits_total",
			Help: "Responses served from the in-memory response cache",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axonflow_client_cache_misses_total",
			Help: "Cache lookups that required a network call",
		}),

		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "axonflow_client_cache_evictions_total",
			Help: "Cache entries evicted in insertion order at capacity",
		}),

		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.retriesTotal,
		m.blocksTotal,
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
	)

	return m
}

// Registry exposes the underlying registry for embedding into an existing
// metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed request with its final status label.
func (m *Metrics) ObserveRequest(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRetries records retry attempts beyond the first try.
func (m *Metrics) ObserveRetries(operation string, retries int) {
	if m == nil || retries <= 0 {
		return
	}
	m.retriesTotal.WithLabelValues(operation).Add(float64(retries))
}

// ObserveBlock records a policy denial.
func (m *Metrics) ObserveBlock(operation string) {
	if m == nil {
		return
	}
	m.blocksTotal.WithLabelValues(operation).Inc()
}

// CacheHit implements the cache observer contract.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss implements the cache observer contract.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// CacheEviction implements the cache observer contract.
func (m *Metrics) CacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}
