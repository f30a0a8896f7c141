package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events. Insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, actor_role, caregiver_id, ip_address, recipient_id, call_sid, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		nullable(e.CaregiverID),
		nullable(e.IPAddress),
		nullable(e.RecipientID),
		nullable(e.CallSID),
		e.Message,
		e.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
