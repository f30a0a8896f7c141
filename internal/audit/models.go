package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// CaregiverID scopes the event to the caregiver account acted on.
	CaregiverID string `json:"caregiver_id,omitempty" db:"caregiver_id"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	RecipientID string `json:"recipient_id,omitempty" db:"recipient_id"`
	CallSID     string `json:"call_sid,omitempty" db:"call_sid"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeManualCall records an operator-triggered test call.
	EventTypeManualCall EventType = "manual_call"
	// EventTypeHangup records an operator-requested call termination.
	EventTypeHangup EventType = "hangup_request"
)
