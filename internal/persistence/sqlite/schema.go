package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_activity_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS tracked_apps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_apps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		app_id TEXT NOT NULL REFERENCES tracked_apps(id),
		is_tracked INTEGER NOT NULL DEFAULT 1,
		is_blocked INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, app_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_schedules (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		app_id TEXT NOT NULL REFERENCES tracked_apps(id),
		days_of_week TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS focus_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		start_time TEXT NOT NULL,
		end_time TEXT,
		scheduled_duration INTEGER NOT NULL,
		breaks_allowed INTEGER NOT NULL DEFAULT 3 CHECK (breaks_allowed BETWEEN 0 AND 10),
		breaks_used INTEGER NOT NULL DEFAULT 0 CHECK (breaks_used >= 0),
		status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'overridden')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// Durable guard for the at-most-one-active-session invariant.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_focus_sessions_one_active
		ON focus_sessions(user_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS focus_session_apps (
		session_id TEXT NOT NULL REFERENCES focus_sessions(id) ON DELETE CASCADE,
		app_id TEXT NOT NULL REFERENCES tracked_apps(id),
		minutes_saved INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, app_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_usage (
		user_id TEXT NOT NULL REFERENCES users(id),
		app_id TEXT NOT NULL REFERENCES tracked_apps(id),
		date TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		sessions_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, app_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS circles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS circle_members (
		circle_id TEXT NOT NULL REFERENCES circles(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		joined_at TEXT NOT NULL,
		PRIMARY KEY (circle_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS friends (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		friend_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'blocked')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, friend_id)
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		circle_id TEXT REFERENCES circles(id),
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent and executed in a
// single transaction.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
