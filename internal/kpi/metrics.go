package kpi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for the snapshot cache.
const (
	MetricCacheHits   = "kpi_cache_hits_total"
	MetricCacheMisses = "kpi_cache_misses_total"
	MetricCacheErrors = "kpi_cache_errors_total"
)

// Metrics contains Prometheus metrics for the KPI snapshot cache.
type Metrics struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec
}

// NewMetrics creates cache metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Total number of market snapshot reads served from Redis",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheMisses,
			Help: "Total number of market snapshot reads that fell through to the store",
		}),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheErrors,
				Help: "Total number of Redis errors by operation",
			},
			[]string{"operation"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.cacheHits,
		m.cacheMisses,
		m.cacheErrors,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) incMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) incError(operation string) {
	if m != nil {
		m.cacheErrors.WithLabelValues(operation).Inc()
	}
}
