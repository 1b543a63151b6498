package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the prediction module.
type Metrics struct {
	// Submissions by outcome
	Submissions *prometheus.CounterVec

	// Scoring round-trip latency
	ScoringLatency prometheus.Histogram

	// Record appends that failed after a scored result was already shown
	PersistenceFailures prometheus.Counter
}

// New creates a new Metrics instance with all prediction module metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdash_prediction_submissions_total",
			Help: "Total prediction submissions by outcome",
		}, []string{"outcome"}), // outcome: "scored", "validation_error", "scoring_error"

		ScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskdash_prediction_scoring_duration_seconds",
			Help:    "Duration of scoring service round trips",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_prediction_persistence_failures_total",
			Help: "Total record appends that failed after scoring succeeded",
		}),
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// ObserveScoringLatency records the duration of a scoring round trip.
func (m *Metrics) ObserveScoringLatency(d time.Duration) {
	if m != nil {
		m.ScoringLatency.Observe(d.Seconds())
	}
}

// IncrementPersistenceFailure records a failed record append.
func (m *Metrics) IncrementPersistenceFailure() {
	if m != nil {
		m.PersistenceFailures.Inc()
	}
}
