package recipients

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("recipients: not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recipientColumns = `
id, caregiver_id, name, preferred_name, phone, call_frequency,
health_notes, interests, conversational_tone, special_instructions,
created_at, updated_at
`

func scanRecipient(row interface{ Scan(...any) error }) (Recipient, error) {
	var r Recipient
	err := row.Scan(
		&r.ID,
		&r.CaregiverID,
		&r.Name,
		&r.PreferredName,
		&r.Phone,
		&r.CallFrequency,
		&r.HealthNotes,
		&r.Interests,
		&r.ConversationalTone,
		&r.SpecialInstructions,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (r *Repository) GetByID(ctx context.Context, id string) (Recipient, error) {
	const q = `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, err
	}
	return rec, nil
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (Recipient, error) {
	const q = `SELECT ` + recipientColumns + ` FROM recipients WHERE phone = $1`
	rec, err := scanRecipient(r.db.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, err
	}
	return rec, nil
}
