package leaderboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for leaderboard computation.
const (
	MetricComputationsTotal   = "leaderboard_computations_total"
	MetricComputationErrors   = "leaderboard_computation_errors_total"
	MetricComputationDuration = "leaderboard_computation_duration_seconds"
	MetricRecordsExcluded     = "leaderboard_records_excluded_total"
	MetricLastRankedRows      = "leaderboard_last_ranked_rows"
)

// Metrics contains Prometheus metrics for leaderboard computation.
// All operations are thread-safe.
type Metrics struct {
	computationsTotal   *prometheus.CounterVec
	computationErrors   *prometheus.CounterVec
	computationDuration prometheus.Histogram
	recordsExcluded     *prometheus.CounterVec
	lastRankedRows      *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		computationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricComputationsTotal,
				Help: "Total number of leaderboards computed by dimension",
			},
			[]string{"dimension"},
		),
		computationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricComputationErrors,
				Help: "Total number of failed leaderboard computations by dimension",
			},
			[]string{"dimension"},
		),
		computationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricComputationDuration,
			Help:    "Histogram of leaderboard computation duration in seconds, including the store read",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		recordsExcluded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecordsExcluded,
				Help: "Total number of records dropped for missing or non-finite values or by the position filter",
			},
			[]string{"dimension"},
		),
		lastRankedRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricLastRankedRows,
				Help: "Number of ranked rows in the most recent leaderboard by dimension",
			},
			[]string{"dimension"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.computationsTotal,
		m.computationErrors,
		m.computationDuration,
		m.recordsExcluded,
		m.lastRankedRows,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveComputation records one successful computation.
func (m *Metrics) ObserveComputation(dimension string, seconds float64, ranked, excluded int) {
	m.computationsTotal.WithLabelValues(dimension).Inc()
	m.computationDuration.Observe(seconds)
	m.lastRankedRows.WithLabelValues(dimension).Set(float64(ranked))
	if excluded > 0 {
		m.recordsExcluded.WithLabelValues(dimension).Add(float64(excluded))
	}
}

// IncComputationErrors increments the error counter for a dimension.
func (m *Metrics) IncComputationErrors(dimension string) {
	m.computationErrors.WithLabelValues(dimension).Inc()
}
