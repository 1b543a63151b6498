// Package client assembles the dashboard core: one session, one submission
// tracker, one history cache, wired so identity changes flow through all of
// them in order.
package client

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"riskdash/internal/history"
	historymetrics "riskdash/internal/history/metrics"
	"riskdash/internal/identity"
	"riskdash/internal/prediction"
	predictionmetrics "riskdash/internal/prediction/metrics"
	"riskdash/internal/scoring"
	"riskdash/internal/session"
	"riskdash/internal/store/record"
	"riskdash/pkg/domain"
)

// Client owns the lifecycle of the core components. Construct with New, then
// Run in a goroutine; the exported fields are the observable surfaces.
type Client struct {
	Sessions    *session.Manager
	Predictions *prediction.Orchestrator
	History     *history.Syncer

	logger *slog.Logger
}

type Option func(*options)

type options struct {
	logger            *slog.Logger
	auditor           session.AuditPublisher
	predictionMetrics *predictionmetrics.Metrics
	historyMetrics    *historymetrics.Metrics
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithAuditPublisher(auditor session.AuditPublisher) Option {
	return func(o *options) {
		o.auditor = auditor
	}
}

func WithPredictionMetrics(m *predictionmetrics.Metrics) Option {
	return func(o *options) {
		o.predictionMetrics = m
	}
}

func WithHistoryMetrics(m *historymetrics.Metrics) Option {
	return func(o *options) {
		o.historyMetrics = m
	}
}

// New wires the core components around the given collaborators.
func New(provider identity.Provider, scorer prediction.Scorer, store record.Store, opts ...Option) *Client {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	sessions := session.NewManager(provider,
		session.WithLogger(o.logger),
		session.WithAuditPublisher(o.auditor),
	)
	predictions := prediction.NewOrchestrator(scorer, store,
		prediction.WithLogger(o.logger),
		prediction.WithMetrics(o.predictionMetrics),
		prediction.WithAuditPublisher(o.auditor),
	)
	syncer := history.NewSyncer(store,
		history.WithLogger(o.logger),
		history.WithMetrics(o.historyMetrics),
		history.WithAuditPublisher(o.auditor),
	)

	return &Client{
		Sessions:    sessions,
		Predictions: predictions,
		History:     syncer,
		logger:      o.logger,
	}
}

// Run drives every background loop until ctx is cancelled. The session loop
// feeds the history syncer and the reset loop through independent watches.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Sessions.Run(ctx)
	})

	historyWatch, cancelHistory := c.Sessions.Watch()
	g.Go(func() error {
		defer cancelHistory()
		return c.History.Run(ctx, historyWatch)
	})

	resetWatch, cancelReset := c.Sessions.Watch()
	g.Go(func() error {
		defer cancelReset()
		c.resetLoop(ctx, resetWatch)
		return nil
	})

	return g.Wait()
}

// Submit scores the form as whoever is signed in right now. Ownership of the
// resulting record is fixed at this moment, not at response time.
func (c *Client) Submit(ctx context.Context, input scoring.FormInput) error {
	return c.Predictions.Submit(ctx, input, c.Sessions.Current())
}

// resetLoop clears the previous user's result whenever the identity changes
// and logs persistence failures the UI has not consumed.
func (c *Client) resetLoop(ctx context.Context, sessions <-chan session.Session) {
	var lastOwner *domain.UserID
	seeded := false

	for {
		select {
		case <-ctx.Done():
			return
		case sess, ok := <-sessions:
			if !ok {
				return
			}
			var owner *domain.UserID
			if sess.Authenticated() {
				uid := sess.Identity.UserID
				owner = &uid
			}
			if seeded && !sameOwner(lastOwner, owner) {
				c.Predictions.Reset()
			}
			lastOwner = owner
			seeded = true
		case failure := <-c.Predictions.PersistenceFailures():
			c.logger.Warn("client: prediction record not persisted",
				"owner", failure.Owner.String(), "error", failure.Err)
		}
	}
}

func sameOwner(a, b *domain.UserID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
