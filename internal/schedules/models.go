package schedules

import "time"

// Frequency values mirror the caregiver-facing schedule form.
type Frequency string

const (
	FrequencyDaily         Frequency = "daily"
	FrequencyEveryOtherDay Frequency = "every_other_day"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyCustom        Frequency = "custom"
)

// Schedule is one recurrence rule per recipient.
//
// Invariant: at most one active schedule evaluation may fire a call per
// recipient per matching time slot; the scheduler enforces that with its
// dedup window and per-recipient serialization.
type Schedule struct {
	ID          string `json:"id" db:"id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	// DayOfWeek is 0 (Sunday) through 6 (Saturday); nil means every day.
	DayOfWeek *int `json:"day_of_week,omitempty" db:"day_of_week"`

	// TimeOfDay is "HH:MM" in the service's wall clock.
	TimeOfDay string `json:"time_of_day" db:"time_of_day"`

	Frequency Frequency `json:"frequency" db:"frequency"`
	Active    bool      `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DueAt reports whether this schedule fires at the given wall-clock moment.
// Matching is exact to the minute; there is no catch-up for missed ticks.
func (s Schedule) DueAt(now time.Time) bool {
	if !s.Active || s.TimeOfDay == "" {
		return false
	}
	if now.Format("15:04") != s.TimeOfDay {
		return false
	}
	if s.Frequency == FrequencyWeekly || s.DayOfWeek != nil {
		if s.DayOfWeek == nil {
			return false
		}
		return int(now.Weekday()) == *s.DayOfWeek
	}
	return true
}
