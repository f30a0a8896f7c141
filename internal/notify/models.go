package notify

import "time"

// Type names are part of the contract with the external delivery mechanism;
// keep them stable.
type Type string

const (
	TypeCallInitiated Type = "call_initiated"
	TypeCallCompleted Type = "call_completed"
	TypeCallMissed    Type = "call_missed"
	TypeCallFailed    Type = "call_failed"
)

// Notification is a caregiver-facing event. Delivery (push, email, SMS digest)
// is owned by an external worker that consumes the Redis queue this service
// publishes to; rows here are the durable record caregiver tooling reads.
type Notification struct {
	ID          string `json:"id" db:"id"`
	CaregiverID string `json:"caregiver_id" db:"caregiver_id"`
	RecipientID string `json:"recipient_id,omitempty" db:"recipient_id"`
	CallID      string `json:"call_id,omitempty" db:"call_id"`

	Type    Type   `json:"type" db:"type"`
	Message string `json:"message" db:"message"`
	Read    bool   `json:"read" db:"read"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
