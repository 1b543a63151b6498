package audit

import (
	"context"
	"time"

	id "riskdash/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance,
	// e.g. account creation for a credit decisioning product.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: auth failures, password reset requests.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	Email     string
	RequestID string
}

type AuditEvent string

const (
	// Session events
	EventUserSignedUp           AuditEvent = "user_signed_up"
	EventUserSignedIn           AuditEvent = "user_signed_in"
	EventUserSignedOut          AuditEvent = "user_signed_out"
	EventAuthFailed             AuditEvent = "auth_failed"
	EventPasswordResetRequested AuditEvent = "password_reset_requested"

	// Scoring events
	EventPredictionSubmitted     AuditEvent = "prediction_submitted"
	EventPredictionPersistFailed AuditEvent = "prediction_persist_failed"

	// History events
	EventHistorySubscriptionFailed AuditEvent = "history_subscription_failed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - a credit score request is regulatory-significant
	EventUserSignedUp:        CategoryCompliance,
	EventPredictionSubmitted: CategoryCompliance,

	// Security events
	EventAuthFailed:             CategorySecurity,
	EventPasswordResetRequested: CategorySecurity,
	EventUserSignedOut:          CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventUserSignedIn:              CategoryOperations,
	EventPredictionPersistFailed:   CategoryOperations,
	EventHistorySubscriptionFailed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
