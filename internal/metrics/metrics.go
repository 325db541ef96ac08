// Package metrics exposes Prometheus counters for pipeline runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/churn-cli/internal/model"
)

// Metrics holds the pipeline collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	rows     prometheus.Counter
	churned  *prometheus.CounterVec
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_pipeline_runs_total",
				Help: "Total number of pipeline runs by status and error category",
			},
			[]string{"status", "error_category"},
		),
		duration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "churn_pipeline_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		rows: f.NewCounter(
			prometheus.CounterOpts{
				Name: "churn_pipeline_rows_scored_total",
				Help: "Total number of customer rows scored",
			},
		),
		churned: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churn_pipeline_churned_customers_total",
				Help: "Total number of customers predicted to churn by tier",
			},
			[]string{"tier"},
		),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(run *model.Run) {
	if m == nil || run == nil {
		return
	}
	m.runs.WithLabelValues(string(run.Status), string(run.ErrorCategory)).Inc()
	m.duration.Observe(float64(run.DurationMs) / 1000)
	if run.Status != model.RunStatusComplete {
		return
	}
	m.rows.Add(float64(run.Rows))
	for tier, n := range run.TierCounts {
		m.churned.WithLabelValues(string(tier)).Add(float64(n))
	}
}
