package memories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMemory = errors.New("memories: invalid memory")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create appends one memory. ID and CreatedAt are assigned here when absent;
// the importance score is clamped to 0..100.
func (r *Repository) Create(ctx context.Context, m Memory) (Memory, error) {
	if m.RecipientID == "" || m.CallID == "" {
		return Memory{}, ErrInvalidMemory
	}
	if strings.TrimSpace(m.Content) == "" {
		return Memory{}, ErrInvalidMemory
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MemoryType == "" {
		m.MemoryType = "general"
	}
	if m.ImportanceScore < 0 {
		m.ImportanceScore = 0
	}
	if m.ImportanceScore > 100 {
		m.ImportanceScore = 100
	}

	const q = `
INSERT INTO memories (id, recipient_id, call_id, memory_type, content, tags, context, importance_score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		m.ID,
		m.RecipientID,
		m.CallID,
		m.MemoryType,
		m.Content,
		strings.Join(m.Tags, ","),
		m.Context,
		m.ImportanceScore,
		m.CreatedAt,
	)
	if err != nil {
		return Memory{}, err
	}
	return m, nil
}

// ListByRecipient returns memories newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, recipient_id, call_id, memory_type, content, tags, context, importance_score, created_at
FROM memories
WHERE recipient_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		var tags string
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.CallID, &m.MemoryType, &m.Content, &tags, &m.Context, &m.ImportanceScore, &m.CreatedAt); err != nil {
			return nil, err
		}
		if tags != "" {
			m.Tags = strings.Split(tags, ",")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
