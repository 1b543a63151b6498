// Package prediction drives a scoring submission from form input to a scored
// result and a persisted history record.
package prediction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"riskdash/internal/prediction/metrics"
	"riskdash/internal/scoring"
	"riskdash/internal/session"
	"riskdash/internal/store/record"
	"riskdash/pkg/domain"
	audit "riskdash/pkg/platform/audit"
	"riskdash/pkg/requestcontext"
)

//go:generate mockgen -source=orchestrator.go -destination=mocks/mocks.go -package=mocks Scorer,RecordAppender

// Scorer issues one scoring request.
type Scorer interface {
	Predict(ctx context.Context, req scoring.Request) (scoring.Result, error)
}

// RecordAppender persists a scored submission.
type RecordAppender interface {
	Append(ctx context.Context, rec record.Record) (domain.RecordID, error)
}

// State is the observable submission state. Result is non-nil only after a
// successful scoring round trip; LastErr holds the failure that ended the
// most recent submission, if any.
type State struct {
	InFlight bool
	Result   *scoring.Result
	LastErr  error
}

// PersistFailure reports a record append that failed after the result was
// already surfaced. It never retracts the result.
type PersistFailure struct {
	Owner domain.UserID
	Err   error
}

// persistFailureBuffer bounds the failure channel; an unread failure is
// dropped with a log line rather than blocking a submission.
const persistFailureBuffer = 8

// Orchestrator tracks one submission at a time. A new Submit supersedes any
// in-flight one: late responses for an earlier submission are discarded via
// a sequence check.
type Orchestrator struct {
	scorer  Scorer
	store   RecordAppender
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor session.AuditPublisher
	tracer  trace.Tracer
	now     func() time.Time

	mu       sync.Mutex
	state    State
	seq      uint64
	watchers map[uint64]chan State
	nextID   uint64

	persistFailures chan PersistFailure
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithAuditPublisher(auditor session.AuditPublisher) Option {
	return func(o *Orchestrator) {
		o.auditor = auditor
	}
}

func NewOrchestrator(scorer Scorer, store RecordAppender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		scorer:          scorer,
		store:           store,
		logger:          slog.Default(),
		tracer:          otel.Tracer("riskdash/prediction"),
		now:             time.Now,
		watchers:        make(map[uint64]chan State),
		persistFailures: make(chan PersistFailure, persistFailureBuffer),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current submission state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Watch registers an observer of the submission state. The channel yields the
// current value immediately and conflates afterwards. The cancel func
// deregisters and closes the channel.
func (o *Orchestrator) Watch() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan State, 1)
	ch <- o.state
	watcherID := o.nextID
	o.nextID++
	o.watchers[watcherID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.watchers, watcherID)
			o.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// PersistenceFailures reports record appends that failed after a result was
// surfaced.
func (o *Orchestrator) PersistenceFailures() <-chan PersistFailure {
	return o.persistFailures
}

// Submit validates input, scores it, surfaces the result, then persists a
// record owned by the identity active when Submit was called. An anonymous
// submission is scored but never persisted. The returned error is the
// validation or scoring failure; persistence failures travel separately.
func (o *Orchestrator) Submit(ctx context.Context, input scoring.FormInput, sess session.Session) error {
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
	ctx, span := o.tracer.Start(ctx, "prediction.submit")
	defer span.End()

	var owner *domain.UserID
	if sess.Authenticated() {
		uid := sess.Identity.UserID
		owner = &uid
	}

	o.mu.Lock()
	o.seq++
	mySeq := o.seq
	o.setStateLocked(State{InFlight: true})
	o.mu.Unlock()

	req, err := scoring.BuildRequest(input, scoring.StandardDefaults)
	if err != nil {
		o.finish(mySeq, State{LastErr: err})
		o.metrics.IncrementSubmission("validation_error")
		return err
	}

	started := o.now()
	result, err := o.scorer.Predict(ctx, req)
	o.metrics.ObserveScoringLatency(o.now().Sub(started))
	if err != nil {
		if o.finish(mySeq, State{LastErr: err}) {
			o.metrics.IncrementSubmission("scoring_error")
		}
		return err
	}

	if !o.finish(mySeq, State{Result: &result}) {
		// A newer submission took over while this one was on the wire.
		return nil
	}
	span.SetAttributes(attribute.Float64("prediction.default_probability", result.DefaultProbability))
	o.metrics.IncrementSubmission("scored")

	if owner == nil {
		return nil
	}
	o.persist(ctx, *owner, req, result)
	return nil
}

// Reset returns the state to its initial value. The client calls this when
// the identity changes so a previous user's result never lingers.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.setStateLocked(State{})
}

// finish installs the terminal state for submission mySeq. It reports false,
// leaving the state untouched, when a newer submission has superseded it.
func (o *Orchestrator) finish(mySeq uint64, final State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seq != mySeq {
		return false
	}
	o.setStateLocked(final)
	return true
}

func (o *Orchestrator) setStateLocked(next State) {
	o.state = next
	for _, ch := range o.watchers {
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

func (o *Orchestrator) persist(ctx context.Context, owner domain.UserID, req scoring.Request, result scoring.Result) {
	rec := record.Record{
		OwnerID:            owner,
		Request:            req,
		DefaultProbability: result.DefaultProbability,
		Explanation:        result.Explanation,
		CreatedAt:          o.now().UTC(),
	}

	recordID, err := o.store.Append(ctx, rec)
	if err == nil {
		o.emit(ctx, audit.Event{
			Action:  string(audit.EventPredictionSubmitted),
			UserID:  owner,
			Subject: recordID.String(),
		})
		return
	}

	o.logger.Error("prediction: record append failed", "owner", owner.String(), "error", err)
	o.metrics.IncrementPersistenceFailure()
	o.emit(ctx, audit.Event{
		Action: string(audit.EventPredictionPersistFailed),
		UserID: owner,
		Reason: err.Error(),
	})

	select {
	case o.persistFailures <- PersistFailure{Owner: owner, Err: err}:
	default:
		o.logger.Warn("prediction: persistence failure channel full, dropping report")
	}
}

func (o *Orchestrator) emit(ctx context.Context, event audit.Event) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Emit(ctx, event); err != nil {
		o.logger.Warn("prediction: audit emit failed", "action", event.Action, "error", err)
	}
}
