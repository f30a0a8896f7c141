package calls

import "time"

// Call is one attempt to reach a recipient.
//
// Rows are never deleted; together they form an append-only audit trail of
// every call the system placed. Status is mutated only by the scheduler at
// dispatch, the carrier status-callback handler, and the enrichment pipeline.
type Call struct {
	ID          string `json:"id" db:"id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	// CallSID is the carrier's identifier, assigned once dispatch succeeds.
	CallSID string `json:"call_sid,omitempty" db:"call_sid"`

	Status Status `json:"status" db:"status"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	Transcript string `json:"transcript,omitempty" db:"transcript"`
	Summary    string `json:"summary,omitempty" db:"summary"`
	Sentiment  string `json:"sentiment,omitempty" db:"sentiment"`
	Notes      string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
	StatusFailed     Status = "failed"
)

// transitions is the only source of truth for legal status changes.
// Terminal states have no outgoing edges, which makes transitions like
// completed -> in_progress impossible by construction.
var transitions = map[Status][]Status{
	StatusInitiated:  {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusMissed, StatusFailed},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusInProgress, StatusCompleted, StatusMissed, StatusFailed:
		return true
	default:
		return false
	}
}

// FromCarrierStatus maps a Twilio call status string onto the lifecycle.
// Unknown statuses (queued, ringing, answered and anything future) return
// ok=false and are ignored by the callback handler.
func FromCarrierStatus(s string) (Status, bool) {
	switch s {
	case "in-progress", "answered":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	case "no-answer", "busy":
		return StatusMissed, true
	case "failed", "canceled":
		return StatusFailed, true
	default:
		return "", false
	}
}

// Sentiment labels produced by enrichment.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)
