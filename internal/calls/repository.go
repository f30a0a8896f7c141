package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carecall-platform/pkg/utils"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("calls: not found")
	ErrInvalidTransition = errors.New("calls: invalid status transition")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const callColumns = `
id, recipient_id, call_sid, status, scheduled_at, started_at, ended_at,
duration_seconds, transcript, summary, sentiment, notes, created_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	var sid, transcript, summary, sentiment, notes sql.NullString
	err := row.Scan(
		&c.ID,
		&c.RecipientID,
		&sid,
		&c.Status,
		&c.ScheduledAt,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&transcript,
		&summary,
		&sentiment,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	c.CallSID = sid.String
	c.Transcript = transcript.String
	c.Summary = summary.String
	c.Sentiment = sentiment.String
	c.Notes = notes.String
	return c, nil
}

// Create inserts a new call attempt. ID, status and timestamps are assigned
// here; the caller only provides recipient and scheduling info.
func (r *Repository) Create(ctx context.Context, recipientID string, scheduledAt time.Time) (Call, error) {
	now := time.Now().UTC()
	c := Call{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Status:      StatusInitiated,
		ScheduledAt: &scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	const q = `
INSERT INTO calls (id, recipient_id, status, scheduled_at, duration_seconds, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,$5,$6)
`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.RecipientID, c.Status, c.ScheduledAt, c.CreatedAt, c.UpdatedAt); err != nil {
		return Call{}, err
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *Repository) GetBySID(ctx context.Context, callSID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE call_sid = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callSID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

// MarkInProgress records the carrier sid returned by call placement and moves
// initiated -> in_progress.
func (r *Repository) MarkInProgress(ctx context.Context, id, callSID string, startedAt time.Time) error {
	const q = `
UPDATE calls
SET call_sid = $2, status = $3, started_at = $4, updated_at = $4
WHERE id = $1 AND status = $5
`
	res, err := r.db.ExecContext(ctx, q, id, callSID, StatusInProgress, startedAt.UTC(), StatusInitiated)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkFailed is used when call placement itself fails (initiated -> failed).
func (r *Repository) MarkFailed(ctx context.Context, id string, notes string) error {
	now := time.Now().UTC()
	const q = `
UPDATE calls
SET status = $2, ended_at = $3, notes = $4, updated_at = $3
WHERE id = $1 AND status = $5
`
	res, err := r.db.ExecContext(ctx, q, id, StatusFailed, now, notes, StatusInitiated)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ApplyStatus performs a guarded transition for a carrier status callback.
// The row is locked so that a duplicate or late callback observes the final
// state and fails the transition check instead of clobbering it.
func (r *Repository) ApplyStatus(ctx context.Context, callSID string, to Status, durationSeconds int, now time.Time) (Call, error) {
	if !to.Valid() {
		return Call{}, fmt.Errorf("calls: unknown status %q", to)
	}

	var out Call
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `SELECT ` + callColumns + ` FROM calls WHERE call_sid = $1 FOR UPDATE`
		c, err := scanCall(tx.QueryRowContext(ctx, sel, callSID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !c.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
		}

		c.Status = to
		c.UpdatedAt = now.UTC()
		if to.IsTerminal() {
			ended := now.UTC()
			c.EndedAt = &ended
			if durationSeconds > 0 {
				c.DurationSeconds = durationSeconds
			}
		}

		const upd = `
UPDATE calls
SET status = $2, ended_at = $3, duration_seconds = $4, updated_at = $5
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd, c.ID, c.Status, c.EndedAt, c.DurationSeconds, c.UpdatedAt); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return Call{}, err
	}
	return out, nil
}

// HasCallSince reports whether any call to the recipient started (or was
// created, for calls that never connected) within the window. This is the
// scheduler's dedup read.
func (r *Repository) HasCallSince(ctx context.Context, recipientID string, since time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM calls
  WHERE recipient_id = $1
    AND COALESCE(started_at, created_at) >= $2
)
`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, recipientID, since.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// SaveEnrichment writes the post-call summary, sentiment and flattened
// transcript. Status is untouched; the call is already completed.
func (r *Repository) SaveEnrichment(ctx context.Context, id, transcript, summary, sentiment string) error {
	const q = `
UPDATE calls
SET transcript = $2, summary = $3, sentiment = $4, updated_at = $5
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q, id, transcript, summary, sentiment, time.Now().UTC())
	return err
}

func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + callColumns + ` FROM calls WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
