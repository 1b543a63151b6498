// Package history keeps a client-local cache of the signed-in user's
// prediction records, driven by the record store's live queries and the
// session's identity stream.
package history

import (
	"context"
	"log/slog"
	"sync"

	"riskdash/internal/history/metrics"
	"riskdash/internal/session"
	"riskdash/internal/store/record"
	"riskdash/pkg/domain"
	audit "riskdash/pkg/platform/audit"
)

//go:generate mockgen -source=syncer.go -destination=mocks/mocks.go -package=mocks Subscriber

// Subscriber opens live queries on the record store.
type Subscriber interface {
	LiveQuery(ctx context.Context, owner domain.UserID) (record.Subscription, error)
}

// State is the observable history cache. Records is always a full snapshot,
// never a partial update; Err is set while the store subscription is broken
// and clears on the next identity-driven rotation.
type State struct {
	Records []record.Record
	Err     error
}

// Syncer holds at most one store subscription open at a time, rotating it on
// every identity change with teardown strictly before setup.
type Syncer struct {
	store   Subscriber
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor session.AuditPublisher

	mu       sync.Mutex
	state    State
	watchers map[uint64]chan State
	nextID   uint64

	// owned by Run
	active record.Subscription
	owner  *domain.UserID
}

type Option func(*Syncer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

func WithAuditPublisher(auditor session.AuditPublisher) Option {
	return func(s *Syncer) {
		s.auditor = auditor
	}
}

func NewSyncer(store Subscriber, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		logger:   slog.Default(),
		watchers: make(map[uint64]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current cache value.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch registers an observer of the cache. The channel yields the current
// value immediately and conflates afterwards. The cancel func deregisters
// and closes the channel.
func (s *Syncer) Watch() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	ch <- s.state
	watcherID := s.nextID
	s.nextID++
	s.watchers[watcherID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, watcherID)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Run consumes the session stream and the active subscription until ctx is
// cancelled or the stream closes. The subscription open at exit is released.
func (s *Syncer) Run(ctx context.Context, sessions <-chan session.Session) error {
	defer s.teardown()

	for {
		var snapshots <-chan []record.Record
		if s.active != nil {
			snapshots = s.active.Snapshots()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case sess, ok := <-sessions:
			if !ok {
				return nil
			}
			s.rotate(ctx, sess)

		case snapshot, ok := <-snapshots:
			if !ok {
				s.subscriptionBroke(ctx, s.active.Err())
				continue
			}
			s.applySnapshot(snapshot)
		}
	}
}

// rotate releases the current subscription, then opens one for the new
// identity. The ordering is load-bearing: two live subscriptions for
// different identities could flash cross-identity records into the cache.
func (s *Syncer) rotate(ctx context.Context, sess session.Session) {
	if !sess.Authenticated() {
		s.teardown()
		s.owner = nil
		s.setState(State{})
		return
	}

	owner := sess.Identity.UserID
	if s.active != nil && s.owner != nil && *s.owner == owner {
		// Same identity and a healthy subscription; nothing to rotate.
		return
	}

	s.teardown()
	s.owner = &owner
	s.setState(State{})
	s.metrics.IncrementRotation()

	sub, err := s.store.LiveQuery(ctx, owner)
	if err != nil {
		s.reportFailure(ctx, owner, err)
		return
	}
	s.active = sub
}

// teardown releases the active subscription. Calling it with nothing
// subscribed is a no-op.
func (s *Syncer) teardown() {
	if s.active == nil {
		return
	}
	if err := s.active.Close(); err != nil {
		s.logger.Warn("history: subscription close failed", "error", err)
	}
	s.active = nil
}

// subscriptionBroke handles the store ending the subscription on its own.
// The cache degrades to empty with the error flagged; recovery happens on
// the next identity event.
func (s *Syncer) subscriptionBroke(ctx context.Context, err error) {
	_ = s.active.Close()
	s.active = nil

	if err == nil {
		// Clean close initiated elsewhere; keep the cache as-is.
		return
	}
	owner := domain.UserID{}
	if s.owner != nil {
		owner = *s.owner
	}
	s.reportFailure(ctx, owner, err)
}

func (s *Syncer) reportFailure(ctx context.Context, owner domain.UserID, err error) {
	s.logger.Error("history: store subscription failed", "owner", owner.String(), "error", err)
	s.metrics.IncrementSubscriptionFailure()
	s.setState(State{Err: err})
	if s.auditor != nil {
		auditErr := s.auditor.Emit(ctx, audit.Event{
			Action: string(audit.EventHistorySubscriptionFailed),
			UserID: owner,
			Reason: err.Error(),
		})
		if auditErr != nil {
			s.logger.Warn("history: audit emit failed", "error", auditErr)
		}
	}
}

func (s *Syncer) applySnapshot(records []record.Record) {
	s.metrics.IncrementSnapshotsApplied()
	s.setState(State{Records: records})
}

func (s *Syncer) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	for _, ch := range s.watchers {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}
