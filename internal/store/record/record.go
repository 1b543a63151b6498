// Package record defines the prediction record model and the store contract
// the client core depends on: append-only writes plus an owner-scoped live
// query that emits full snapshots.
package record

import (
	"context"
	"time"

	"riskdash/internal/scoring"
	"riskdash/pkg/domain"
)

// Record is one persisted prediction. Immutable once created: the core never
// updates or deletes records, it only appends new ones.
type Record struct {
	ID      domain.RecordID `json:"id"`
	OwnerID domain.UserID   `json:"owner_id"`
	// Request is the full scoring payload the prediction was made from, so
	// history entries can show what was submitted.
	Request            scoring.Request    `json:"request"`
	DefaultProbability float64            `json:"default_probability"`
	Explanation        map[string]float64 `json:"explanation"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Store is the record store contract. Implementations must order live-query
// snapshots by CreatedAt descending; equal timestamps keep the store's own
// insertion order, newest insertion first.
type Store interface {
	// Append persists a record. The record's ID is assigned when nil.
	Append(ctx context.Context, rec Record) (domain.RecordID, error)

	// LiveQuery opens a subscription scoped to one owner. The subscription
	// emits an initial snapshot and a fresh full snapshot after every change.
	LiveQuery(ctx context.Context, owner domain.UserID) (Subscription, error)
}

// Subscription is a live, owner-scoped view of the store.
type Subscription interface {
	// Snapshots emits full record lists; every emission entirely replaces
	// the previous one. The channel closes when the subscription ends.
	Snapshots() <-chan []Record

	// Err reports why the subscription ended. Nil while live and after a
	// clean Close; non-nil when the underlying listener failed.
	Err() error

	// Close releases the subscription. Idempotent: closing twice is a no-op.
	Close() error
}
