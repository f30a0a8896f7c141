package notify

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound means no notification with that id belongs to the caregiver.
var ErrNotFound = errors.New("notification not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	const q = `
INSERT INTO notifications (id, caregiver_id, recipient_id, call_id, type, message, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID,
		n.CaregiverID,
		nullable(n.RecipientID),
		nullable(n.CallID),
		string(n.Type),
		n.Message,
		n.Read,
		n.CreatedAt,
	)
	return err
}

func (r *Repository) ListByCaregiver(ctx context.Context, caregiverID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, caregiver_id, recipient_id, call_id, type, message, read, created_at
FROM notifications
WHERE caregiver_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, caregiverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var recipientID, callID sql.NullString
		if err := rows.Scan(&n.ID, &n.CaregiverID, &recipientID, &callID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.RecipientID = recipientID.String
		n.CallID = callID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) MarkRead(ctx context.Context, caregiverID, id string) error {
	const q = `UPDATE notifications SET read = TRUE WHERE caregiver_id = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, q, caregiverID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
