package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the pantry service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database metrics
	DatabaseConnections prometheus.Gauge

	// Redis metrics
	RedisConnections prometheus.Gauge

	// Business metrics
	ConsumptionsTotal     *prometheus.CounterVec
	ConsumptionDuration   *prometheus.HistogramVec
	BatchesPerConsumption *prometheus.HistogramVec
	SweepMutationsTotal   prometheus.Counter
	SweepDuration         prometheus.Histogram
	IdempotencyTotal      *prometheus.CounterVec
	CacheHits             *prometheus.CounterVec
	CacheMisses           *prometheus.CounterVec

	// Health metrics
	DependencyHealth *prometheus.GaugeVec
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_service_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pantry_service_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pantry_service_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		// Database metrics
		DatabaseConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pantry_service_database_connections",
				Help: "Current number of database connections",
			},
		),

		// Redis metrics
		RedisConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pantry_service_redis_connections",
				Help: "Current number of Redis connections",
			},
		),

		// Business metrics
		ConsumptionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_service_consumptions_total",
				Help: "Total number of step consumption transactions",
			},
			[]string{"status"},
		),
		ConsumptionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pantry_service_consumption_duration_seconds",
				Help:    "Duration of step consumption transactions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		BatchesPerConsumption: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pantry_service_batches_per_consumption",
				Help:    "Number of batches deducted per step consumption",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
			},
			[]string{"status"},
		),
		SweepMutationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pantry_service_sweep_mutations_total",
				Help: "Total number of batch state transitions applied by sweeps",
			},
		),
		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pantry_service_sweep_duration_seconds",
				Help:    "Duration of expiry sweeps in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		IdempotencyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_service_idempotency_total",
				Help: "Idempotency check outcomes",
			},
			[]string{"outcome"},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_service_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pantry_service_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Health metrics
		DependencyHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pantry_service_dependency_health",
				Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
			},
			[]string{"dependency"},
		),
	}
}

// Initialize sets up initial metric values
func (m *Metrics) Initialize() {
	m.DependencyHealth.WithLabelValues("postgres").Set(0)
	m.DependencyHealth.WithLabelValues("redis").Set(0)
}

// UpdateDependencyHealth updates the health status of a dependency
func (m *Metrics) UpdateDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.DependencyHealth.WithLabelValues(dependency).Set(value)
}

// RecordConsumption records one step consumption transaction
func (m *Metrics) RecordConsumption(batches int, duration time.Duration, status string) {
	m.ConsumptionsTotal.WithLabelValues(status).Inc()
	m.ConsumptionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.BatchesPerConsumption.WithLabelValues(status).Observe(float64(batches))
}

// RecordSweep records one expiry sweep run
func (m *Metrics) RecordSweep(mutated int64, duration time.Duration) {
	m.SweepMutationsTotal.Add(float64(mutated))
	m.SweepDuration.Observe(duration.Seconds())
}

// RecordIdempotency records one idempotency check outcome
func (m *Metrics) RecordIdempotency(outcome string) {
	m.IdempotencyTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
