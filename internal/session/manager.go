package session

import (
	"context"
	"log/slog"
	"sync"

	"riskdash/internal/identity"
	audit "riskdash/pkg/platform/audit"
)

//go:generate mockgen -source=manager.go -destination=mocks/mocks.go -package=mocks AuditPublisher

// AuditPublisher records session lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Manager owns the single live Session for a client instance. The session is
// mutated only by the provider's change stream, consumed in Run; the
// authentication operations call the provider and let the resulting change
// flow back around.
type Manager struct {
	provider identity.Provider
	auditor  AuditPublisher
	logger   *slog.Logger

	mu       sync.Mutex
	current  Session
	watchers map[uint64]chan Session
	nextID   uint64
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithAuditPublisher(auditor AuditPublisher) Option {
	return func(m *Manager) {
		m.auditor = auditor
	}
}

func NewManager(provider identity.Provider, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		logger:   slog.Default(),
		current:  Session{Status: StatusLoading},
		watchers: make(map[uint64]chan Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run consumes the provider's change stream until ctx is cancelled or the
// stream closes. Restarting requires a new Manager.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-m.provider.Changes():
			if !ok {
				return nil
			}
			m.apply(change)
		}
	}
}

// Current returns the live session value.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Watch registers an observer of the session. The channel immediately yields
// the current value and then conflates: an undelivered value is replaced by
// the next one. The cancel func deregisters and closes the channel.
func (m *Manager) Watch() (<-chan Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Session, 1)
	ch <- m.current
	watcherID := m.nextID
	m.nextID++
	m.watchers[watcherID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, watcherID)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Login exchanges credentials for a signed-in identity. The session itself
// transitions when the provider's change notification arrives.
func (m *Manager) Login(ctx context.Context, email, password string) (identity.Identity, error) {
	ident, err := m.provider.Login(ctx, email, password)
	if err != nil {
		m.emit(ctx, audit.Event{Action: string(audit.EventAuthFailed), Email: email, Reason: err.Error()})
		return identity.Identity{}, newAuthError(err)
	}
	m.emit(ctx, audit.Event{Action: string(audit.EventUserSignedIn), UserID: ident.UserID, Email: ident.Email})
	return ident, nil
}

// Signup registers a new user and signs them in.
func (m *Manager) Signup(ctx context.Context, email, password string) (identity.Identity, error) {
	ident, err := m.provider.Signup(ctx, email, password)
	if err != nil {
		m.emit(ctx, audit.Event{Action: string(audit.EventAuthFailed), Email: email, Reason: err.Error()})
		return identity.Identity{}, newAuthError(err)
	}
	m.emit(ctx, audit.Event{Action: string(audit.EventUserSignedUp), UserID: ident.UserID, Email: ident.Email})
	return ident, nil
}

// RequestPasswordReset asks the provider to send a reset email.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if err := m.provider.RequestPasswordReset(ctx, email); err != nil {
		return newAuthError(err)
	}
	m.emit(ctx, audit.Event{Action: string(audit.EventPasswordResetRequested), Email: email})
	return nil
}

// Logout revokes the current identity.
func (m *Manager) Logout(ctx context.Context) error {
	current := m.Current()
	if err := m.provider.Logout(ctx); err != nil {
		return newAuthError(err)
	}
	if current.Authenticated() {
		m.emit(ctx, audit.Event{Action: string(audit.EventUserSignedOut), UserID: current.Identity.UserID, Email: current.Identity.Email})
	}
	return nil
}

func (m *Manager) apply(change identity.Change) {
	next := Session{Status: StatusAnonymous}
	if change.Identity != nil {
		ident := *change.Identity
		next = Session{Status: StatusAuthenticated, Identity: &ident}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = next
	m.logger.Debug("session: transition", "status", string(next.Status))
	for _, ch := range m.watchers {
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

func (m *Manager) emit(ctx context.Context, event audit.Event) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Emit(ctx, event); err != nil {
		m.logger.Warn("session: audit emit failed", "action", event.Action, "error", err)
	}
}
