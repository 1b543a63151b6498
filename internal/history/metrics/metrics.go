package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the history module.
type Metrics struct {
	// Snapshots applied to the cache
	SnapshotsApplied prometheus.Counter

	// Store subscription failures
	SubscriptionFailures prometheus.Counter

	// Subscription rotations driven by identity changes
	Rotations prometheus.Counter
}

// New creates a new Metrics instance with all history module metrics registered.
func New() *Metrics {
	return &Metrics{
		SnapshotsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_history_snapshots_applied_total",
			Help: "Total history snapshots applied to the cache",
		}),
		SubscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_history_subscription_failures_total",
			Help: "Total record store subscription failures",
		}),
		Rotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_history_rotations_total",
			Help: "Total subscription rotations driven by identity changes",
		}),
	}
}

// IncrementSnapshotsApplied records an applied snapshot.
func (m *Metrics) IncrementSnapshotsApplied() {
	if m != nil {
		m.SnapshotsApplied.Inc()
	}
}

// IncrementSubscriptionFailure records a failed store subscription.
func (m *Metrics) IncrementSubscriptionFailure() {
	if m != nil {
		m.SubscriptionFailures.Inc()
	}
}

// IncrementRotation records a subscription rotation.
func (m *Metrics) IncrementRotation() {
	if m != nil {
		m.Rotations.Inc()
	}
}
