package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputeTotal counts per-user recomputes by outcome.
	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchstats_recompute_total",
			Help: "Total number of per-user stats recomputes",
		},
		[]string{"result"},
	)

	// RecomputeDuration tracks the latency of a per-user recompute.
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchstats_recompute_duration_seconds",
			Help:    "Duration of per-user stats recomputes in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// EntriesSkippedTotal counts entries dropped from a fold because they could not be processed.
	EntriesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchstats_entries_skipped_total",
			Help: "Total number of list entries skipped during stats recompute",
		},
	)

	// BatchUsers reports the outcome of the last recompute-all run.
	BatchUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchstats_batch_users",
			Help: "Users processed by the last batch recompute, by outcome",
		},
		[]string{"result"},
	)

	// BatchInFlight is the number of user recomputes currently running inside a batch.
	BatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchstats_batch_in_flight",
			Help: "User recomputes currently running inside a batch",
		},
	)
)

// RecordRecompute records the outcome of a per-user recompute.
func RecordRecompute(result string, skipped int, elapsed time.Duration) {
	RecomputeTotal.WithLabelValues(result).Inc()
	RecomputeDuration.Observe(elapsed.Seconds())
	if skipped > 0 {
		EntriesSkippedTotal.Add(float64(skipped))
	}
}

// RecordBatch records the outcome of a recompute-all run.
func RecordBatch(report BatchReport) {
	BatchUsers.WithLabelValues("succeeded").Set(float64(report.Succeeded))
	BatchUsers.WithLabelValues("failed").Set(float64(report.Failed))
}
