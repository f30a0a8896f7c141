package store

import (
	"context"
	"database/sql"
	"strings"
)

// Schema is applied at startup. Statements are idempotent so a restart
// against an already-migrated database is a no-op.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS recipients (
		id UUID PRIMARY KEY,
		caregiver_id UUID NOT NULL,
		name TEXT NOT NULL,
		preferred_name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL UNIQUE,
		call_frequency TEXT NOT NULL DEFAULT 'daily',
		health_notes TEXT NOT NULL DEFAULT '',
		interests TEXT NOT NULL DEFAULT '',
		conversational_tone TEXT NOT NULL DEFAULT '',
		special_instructions TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_caregiver ON recipients (caregiver_id)`,

	`CREATE TABLE IF NOT EXISTS schedules (
		id UUID PRIMARY KEY,
		recipient_id UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
		day_of_week SMALLINT,
		time_of_day TEXT NOT NULL,
		frequency TEXT NOT NULL DEFAULT 'daily',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules (active) WHERE active = TRUE`,

	`CREATE TABLE IF NOT EXISTS calls (
		id UUID PRIMARY KEY,
		recipient_id UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
		call_sid TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'initiated',
		scheduled_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		transcript TEXT,
		summary TEXT,
		sentiment TEXT,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_recipient_recent ON calls (recipient_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS memories (
		id UUID PRIMARY KEY,
		recipient_id UUID NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
		call_id UUID REFERENCES calls(id) ON DELETE SET NULL,
		memory_type TEXT NOT NULL DEFAULT 'general',
		content TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		importance_score SMALLINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memories_recipient ON memories (recipient_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		caregiver_id UUID NOT NULL,
		recipient_id UUID,
		call_id UUID,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_caregiver ON notifications (caregiver_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		actor_user_id TEXT NOT NULL,
		actor_role TEXT NOT NULL DEFAULT '',
		caregiver_id UUID,
		ip_address TEXT,
		recipient_id UUID,
		call_sid TEXT,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events (created_at DESC)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
