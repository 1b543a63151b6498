// Package requestcontext provides context accessors for request-scoped
// values. Values are set where an operation begins and consumed by the audit
// trail and logs; the package stays free of net/http so consumers import only
// what they need.
package requestcontext

import (
	"context"

	id "riskdash/pkg/domain"
)

type (
	userIDKey    struct{}
	requestIDKey struct{}
)

// WithUserID returns a context carrying the acting user's ID.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the acting user's ID, or the zero ID when none is set.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(userIDKey{}).(id.UserID)
	return v
}

// WithRequestID returns a context carrying a correlation ID for the current
// operation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation ID, or "" when none is set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}
