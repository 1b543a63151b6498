// Package session tracks who the client is acting as. It wraps the identity
// provider behind a live Session value that the rest of the client observes.
package session

import (
	"errors"
	"fmt"

	"riskdash/internal/identity"
)

// Status is the authentication state of the client.
type Status string

const (
	// StatusLoading holds until the provider reports the initial state.
	StatusLoading Status = "loading"

	// StatusAuthenticated means a signed-in identity is active.
	StatusAuthenticated Status = "authenticated"

	// StatusAnonymous means nobody is signed in.
	StatusAnonymous Status = "anonymous"
)

// Session is the client's current view of whether, and as whom, the user is
// authenticated. Identity is non-nil exactly when Status is Authenticated.
type Session struct {
	Status   Status
	Identity *identity.Identity
}

// Authenticated reports whether a signed-in identity is active.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// AuthError is an identity-provider rejection. Reason carries the provider's
// message verbatim; these are never retried automatically.
type AuthError struct {
	Reason string
	cause  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// newAuthError derives the surfaced reason from the provider's error.
func newAuthError(err error) *AuthError {
	var provErr *identity.ProviderError
	if errors.As(err, &provErr) {
		return &AuthError{Reason: provErr.Reason, cause: err}
	}
	return &AuthError{Reason: err.Error(), cause: err}
}
