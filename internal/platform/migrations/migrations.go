// Package migrations applies the database schema at startup. Statements are
// ordered and idempotent so Apply can run on every boot.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS routines (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		goal_description TEXT NOT NULL DEFAULT '',
		target_bed_time_local TEXT NOT NULL DEFAULT '',
		target_wake_time_local TEXT NOT NULL DEFAULT '',
		time_zone TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS routine_steps (
		id TEXT PRIMARY KEY,
		routine_id TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
		order_index INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		minutes_before_bed INTEGER,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sleep_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		routine_id TEXT REFERENCES routines(id),
		sleep_date TIMESTAMPTZ NOT NULL,
		bed_time TIMESTAMPTZ,
		wake_time TIMESTAMPTZ,
		quality_score INTEGER,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_routines_user_updated ON routines (user_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_routine_steps_routine_order ON routine_steps (routine_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_sleep_logs_user_date ON sleep_logs (user_id, sleep_date DESC, created_at DESC)`,
}

// Apply executes every schema statement in order against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
