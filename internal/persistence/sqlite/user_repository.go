package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a SQLite-backed user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser stores a new account row.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, current_streak, longest_streak, last_activity_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.conn.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.DisplayName,
		user.PasswordHash,
		user.CurrentStreak,
		user.LongestStreak,
		nullableString(user.LastActivityDate),
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetUser retrieves an account by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.scanUser(r.db.conn.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, current_streak, longest_streak, last_activity_date, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
}

// GetUserByEmail retrieves an account by email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.scanUser(r.db.conn.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, current_streak, longest_streak, last_activity_date, created_at, updated_at
		FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email))))
}

// UpdateStreak persists recomputed streak counters for a user.
func (r *UserRepository) UpdateStreak(ctx context.Context, userID string, current, longest int, lastActivityDate string) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE users
		SET current_streak = ?, longest_streak = ?, last_activity_date = ?, updated_at = ?
		WHERE id = ?
	`, current, longest, lastActivityDate, time.Now().UTC().Format(time.RFC3339), userID)
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

func (r *UserRepository) scanUser(row *sql.Row) (persistence.User, error) {
	var user persistence.User
	var lastActivity sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CurrentStreak,
		&user.LongestStreak,
		&lastActivity,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}

	if lastActivity.Valid {
		date := lastActivity.String
		user.LastActivityDate = &date
	}
	if user.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return user, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullableTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
