package recipients

import "time"

// Recipient is the person being called.
//
// Rows are created and edited by caregiver-facing profile forms that live
// outside this service; the call core treats recipients as read-only input.
type Recipient struct {
	ID          string `json:"id" db:"id"`
	CaregiverID string `json:"caregiver_id" db:"caregiver_id"`

	Name          string `json:"name" db:"name"`
	PreferredName string `json:"preferred_name" db:"preferred_name"`

	// Phone is stored in E.164 and unique across recipients.
	Phone string `json:"phone" db:"phone"`

	// CallFrequency is one of: daily, every_other_day, weekly, custom.
	CallFrequency string `json:"call_frequency" db:"call_frequency"`

	// Context bundle used to personalize the voice agent session.
	HealthNotes         string `json:"health_notes,omitempty" db:"health_notes"`
	Interests           string `json:"interests,omitempty" db:"interests"`
	ConversationalTone  string `json:"conversational_tone,omitempty" db:"conversational_tone"`
	SpecialInstructions string `json:"special_instructions,omitempty" db:"special_instructions"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PersonalizationContext flattens the context bundle into the prompt text
// handed to the voice agent as a stream parameter.
func (r Recipient) PersonalizationContext() string {
	out := ""
	if r.HealthNotes != "" {
		out += "Health notes: " + r.HealthNotes + ". "
	}
	if r.Interests != "" {
		out += "Interests: " + r.Interests + ". "
	}
	if r.ConversationalTone != "" {
		out += "Preferred tone: " + r.ConversationalTone + ". "
	}
	if r.SpecialInstructions != "" {
		out += "Special instructions: " + r.SpecialInstructions + "."
	}
	return out
}

// DisplayName prefers the short name used in conversation.
func (r Recipient) DisplayName() string {
	if r.PreferredName != "" {
		return r.PreferredName
	}
	return r.Name
}
