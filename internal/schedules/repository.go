package schedules

import (
	"context"
	"database/sql"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns every active schedule, newest first. The scheduler scans
// the full set on each tick; schedule counts are small (one per recipient).
func (r *Repository) ListActive(ctx context.Context) ([]Schedule, error) {
	const q = `
SELECT id, recipient_id, day_of_week, time_of_day, frequency, active, created_at, updated_at
FROM schedules
WHERE active = TRUE
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var s Schedule
		var day sql.NullInt64
		if err := rows.Scan(&s.ID, &s.RecipientID, &day, &s.TimeOfDay, &s.Frequency, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if day.Valid {
			d := int(day.Int64)
			s.DayOfWeek = &d
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
