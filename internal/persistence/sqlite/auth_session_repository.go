package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository using SQLite.
type AuthSessionRepository struct {
	db *DB
}

// NewAuthSessionRepository creates a SQLite-backed auth session repository.
func NewAuthSessionRepository(db *DB) *AuthSessionRepository {
	return &AuthSessionRepository{db: db}
}

// CreateAuthSession stores a newly issued bearer token.
func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" || session.UserID == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	session.Token = strings.TrimSpace(session.Token)
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		session.CreatedAt.UTC().Format(time.RFC3339),
		nullableTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}
	return session, nil
}

// GetAuthSession retrieves a session by its token value.
func (r *AuthSessionRepository) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	var session persistence.AuthSession
	var expiresAt, createdAt string
	var revokedAt sql.NullString

	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, created_at, revoked_at
		FROM auth_sessions WHERE token = ?
	`, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
		&revokedAt,
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}

	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("parse expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("parse created_at: %w", err)
	}
	if session.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("parse revoked_at: %w", err)
	}
	return session, nil
}

// RevokeAuthSession marks a session as revoked by token.
func (r *AuthSessionRepository) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.ErrNotFound
	}

	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE auth_sessions SET revoked_at = ? WHERE token = ?
	`, revokedAt.UTC().Format(time.RFC3339), token)
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

// DeleteExpiredAuthSessions removes sessions that expired on or before the
// provided reference time.
func (r *AuthSessionRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.db.conn.ExecContext(ctx, `
		DELETE FROM auth_sessions WHERE expires_at <= ?
	`, reference.UTC().Format(time.RFC3339))
	return mapError(err)
}
