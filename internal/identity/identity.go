// Package identity talks to the external identity provider. It exposes the
// authentication operations the session layer needs plus a change stream that
// reports who is currently signed in.
package identity

import (
	"context"

	"riskdash/pkg/domain"
)

//go:generate mockgen -source=identity.go -destination=mocks/mocks.go -package=mocks Provider

// Identity is a provider-issued view of the signed-in user.
type Identity struct {
	UserID domain.UserID
	Email  string
}

// Change is emitted whenever the provider's view of the signed-in user moves.
// A nil Identity means signed out, including when the access token lapses.
type Change struct {
	Identity *Identity
}

// Provider is the surface the session layer consumes.
type Provider interface {
	// Login exchanges credentials for an authenticated identity.
	Login(ctx context.Context, email, password string) (Identity, error)

	// Signup registers a new user and signs them in.
	Signup(ctx context.Context, email, password string) (Identity, error)

	// RequestPasswordReset asks the provider to send a reset email.
	RequestPasswordReset(ctx context.Context, email string) error

	// Logout revokes the current token. A no-op when nobody is signed in.
	Logout(ctx context.Context) error

	// Changes streams identity transitions, including expiry-driven sign-outs.
	// The channel closes when the provider is closed.
	Changes() <-chan Change

	// Close releases the change stream and any pending expiry timer.
	Close() error
}
