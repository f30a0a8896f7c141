package memories

import "time"

// Memory is a durable fact about a recipient extracted from one call's
// transcript by the enrichment pipeline.
//
// Memories are append-only. Corrections happen by creating a new record,
// never by mutating an existing one, so no Update or Delete exists.
type Memory struct {
	ID          string `json:"id" db:"id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`
	CallID      string `json:"call_id" db:"call_id"`

	MemoryType string   `json:"memory_type" db:"memory_type"`
	Content    string   `json:"content" db:"content"`
	Tags       []string `json:"tags,omitempty" db:"tags"`
	Context    string   `json:"context,omitempty" db:"context"`

	// ImportanceScore is clamped to 0..100 at creation.
	ImportanceScore int `json:"importance_score" db:"importance_score"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
