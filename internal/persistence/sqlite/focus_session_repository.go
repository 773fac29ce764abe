package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// FocusSessionRepository implements persistence.FocusSessionRepository using SQLite.
type FocusSessionRepository struct {
	db *DB
}

// NewFocusSessionRepository creates a SQLite-backed focus session repository.
func NewFocusSessionRepository(db *DB) *FocusSessionRepository {
	return &FocusSessionRepository{db: db}
}

// CreateSession inserts a session row. The partial unique index on
// (user_id) WHERE status='active' rejects a second active session for the
// same user with persistence.ErrDuplicate, which callers treat as "merge
// into the existing session" rather than an error surface.
func (r *FocusSessionRepository) CreateSession(ctx context.Context, session persistence.FocusSession) error {
	if session.ID == "" || session.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO focus_sessions (id, user_id, start_time, end_time, scheduled_duration, breaks_allowed, breaks_used, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.StartTime.UTC().Format(time.RFC3339),
		nullableTime(session.EndTime),
		session.ScheduledDuration,
		session.BreaksAllowed,
		session.BreaksUsed,
		session.Status,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetSession retrieves a session by ID.
func (r *FocusSessionRepository) GetSession(ctx context.Context, id string) (persistence.FocusSession, error) {
	return r.scanSession(r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, start_time, end_time, scheduled_duration, breaks_allowed, breaks_used, status, created_at, updated_at
		FROM focus_sessions WHERE id = ?
	`, id))
}

// GetActiveSession retrieves the user's single active session, if any.
func (r *FocusSessionRepository) GetActiveSession(ctx context.Context, userID string) (persistence.FocusSession, error) {
	return r.scanSession(r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, start_time, end_time, scheduled_duration, breaks_allowed, breaks_used, status, created_at, updated_at
		FROM focus_sessions WHERE user_id = ? AND status = ?
	`, userID, persistence.SessionStatusActive))
}

// FinalizeSession moves an active session to a terminal status in one
// statement. Finalizing an already-terminal session reports not found.
func (r *FocusSessionRepository) FinalizeSession(ctx context.Context, id string, status string, endTime time.Time) error {
	if status != persistence.SessionStatusCompleted && status != persistence.SessionStatusOverridden {
		return persistence.ErrConstraintViolation
	}

	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE focus_sessions
		SET status = ?, end_time = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		status,
		endTime.UTC().Format(time.RFC3339),
		endTime.UTC().Format(time.RFC3339),
		id,
		persistence.SessionStatusActive,
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// UpdateBreaksUsed persists the consumed break count for a session.
func (r *FocusSessionRepository) UpdateBreaksUsed(ctx context.Context, id string, breaksUsed int) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE focus_sessions SET breaks_used = ?, updated_at = ? WHERE id = ?
	`, breaksUsed, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session row. Used by the compensation path when
// join-row inserts fail after the session row was created; the join table
// cascades.
func (r *FocusSessionRepository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM focus_sessions WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// AddSessionApps inserts join rows for the provided app ids inside one
// transaction. Ids already joined to the session are left untouched, which
// makes the merge path idempotent.
func (r *FocusSessionRepository) AddSessionApps(ctx context.Context, sessionID string, appIDs []string) error {
	if len(appIDs) == 0 {
		return nil
	}
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, appID := range appIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO focus_session_apps (session_id, app_id, minutes_saved)
				VALUES (?, ?, 0)
				ON CONFLICT(session_id, app_id) DO NOTHING
			`, sessionID, appID)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListSessionApps returns the locked apps joined to a session.
func (r *FocusSessionRepository) ListSessionApps(ctx context.Context, sessionID string) ([]persistence.SessionApp, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT session_id, app_id, minutes_saved
		FROM focus_session_apps WHERE session_id = ? ORDER BY app_id
	`, sessionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	apps := make([]persistence.SessionApp, 0)
	for rows.Next() {
		var app persistence.SessionApp
		if err := rows.Scan(&app.SessionID, &app.AppID, &app.MinutesSaved); err != nil {
			return nil, mapError(err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// SetMinutesSaved writes the same minutes-saved value to every locked app
// of a session. Saved time is a function of session elapsed time, so all
// locked apps always carry the same credit.
func (r *FocusSessionRepository) SetMinutesSaved(ctx context.Context, sessionID string, minutes int) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE focus_session_apps SET minutes_saved = ? WHERE session_id = ?
	`, minutes, sessionID)
	return mapError(err)
}

func (r *FocusSessionRepository) scanSession(row *sql.Row) (persistence.FocusSession, error) {
	var session persistence.FocusSession
	var startTime, createdAt, updatedAt string
	var endTime sql.NullString

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&startTime,
		&endTime,
		&session.ScheduledDuration,
		&session.BreaksAllowed,
		&session.BreaksUsed,
		&session.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.FocusSession{}, mapError(err)
	}

	if session.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return persistence.FocusSession{}, fmt.Errorf("parse start_time: %w", err)
	}
	if session.EndTime, err = parseTimePtr(endTime); err != nil {
		return persistence.FocusSession{}, fmt.Errorf("parse end_time: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.FocusSession{}, fmt.Errorf("parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.FocusSession{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return session, nil
}
