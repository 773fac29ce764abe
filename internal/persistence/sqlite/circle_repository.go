package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// CircleRepository implements persistence.CircleRepository and
// persistence.ActivityRepository using SQLite.
type CircleRepository struct {
	db *DB
}

// NewCircleRepository creates a SQLite-backed circle repository.
func NewCircleRepository(db *DB) *CircleRepository {
	return &CircleRepository{db: db}
}

// CreateCircle stores a new circle row.
func (r *CircleRepository) CreateCircle(ctx context.Context, circle persistence.Circle) error {
	if circle.ID == "" || strings.TrimSpace(circle.Name) == "" || circle.CreatedBy == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO circles (id, name, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		circle.ID,
		circle.Name,
		circle.CreatedBy,
		circle.CreatedAt.UTC().Format(time.RFC3339),
		circle.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetCircle retrieves a circle by ID.
func (r *CircleRepository) GetCircle(ctx context.Context, id string) (persistence.Circle, error) {
	var circle persistence.Circle
	var createdAt, updatedAt string

	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, updated_at FROM circles WHERE id = ?
	`, id).Scan(&circle.ID, &circle.Name, &circle.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Circle{}, mapError(err)
	}

	if circle.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Circle{}, fmt.Errorf("parse created_at: %w", err)
	}
	if circle.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Circle{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return circle, nil
}

// UpdateCircle persists a renamed circle.
func (r *CircleRepository) UpdateCircle(ctx context.Context, circle persistence.Circle) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE circles SET name = ?, updated_at = ? WHERE id = ?
	`, circle.Name, circle.UpdatedAt.UTC().Format(time.RFC3339), circle.ID)
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

// DeleteCircle removes a circle row. Memberships must already be gone and
// activity references nulled; the foreign keys enforce the ordering.
func (r *CircleRepository) DeleteCircle(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM circles WHERE id = ?`, id)
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

// AddMember stores a membership row.
func (r *CircleRepository) AddMember(ctx context.Context, member persistence.CircleMember) error {
	if member.CircleID == "" || member.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO circle_members (circle_id, user_id, joined_at) VALUES (?, ?, ?)
	`, member.CircleID, member.UserID, member.JoinedAt.UTC().Format(time.RFC3339))
	return mapError(err)
}

// DeleteMembers removes every membership row for a circle.
func (r *CircleRepository) DeleteMembers(ctx context.Context, circleID string) error {
	_, err := r.db.conn.ExecContext(ctx, `DELETE FROM circle_members WHERE circle_id = ?`, circleID)
	return mapError(err)
}

// IsMember reports whether the user belongs to the circle.
func (r *CircleRepository) IsMember(ctx context.Context, circleID, userID string) (bool, error) {
	var found int
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM circle_members WHERE circle_id = ? AND user_id = ?
	`, circleID, userID).Scan(&found)
	if err != nil {
		if mapError(err) == persistence.ErrNotFound {
			return false, nil
		}
		return false, mapError(err)
	}
	return true, nil
}

// ListMembers returns the circle's memberships ordered by join time.
func (r *CircleRepository) ListMembers(ctx context.Context, circleID string) ([]persistence.CircleMember, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT circle_id, user_id, joined_at
		FROM circle_members WHERE circle_id = ? ORDER BY joined_at, user_id
	`, circleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	members := make([]persistence.CircleMember, 0)
	for rows.Next() {
		var member persistence.CircleMember
		var joinedAt string
		if err := rows.Scan(&member.CircleID, &member.UserID, &joinedAt); err != nil {
			return nil, mapError(err)
		}
		if member.JoinedAt, err = time.Parse(time.RFC3339, joinedAt); err != nil {
			return nil, fmt.Errorf("parse joined_at: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// CreateActivity stores an activity feed row.
func (r *CircleRepository) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" || activity.UserID == "" || activity.Kind == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, circle_id, kind, created_at) VALUES (?, ?, ?, ?, ?)
	`,
		activity.ID,
		activity.UserID,
		nullableString(activity.CircleID),
		activity.Kind,
		activity.CreatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// DetachCircle nulls the circle reference on every activity row that points
// at the circle. Runs first in the circle-deletion cascade.
func (r *CircleRepository) DetachCircle(ctx context.Context, circleID string) error {
	_, err := r.db.conn.ExecContext(ctx, `
		UPDATE activities SET circle_id = NULL WHERE circle_id = ?
	`, circleID)
	return mapError(err)
}

// ListActivities returns a user's activity rows, newest first.
func (r *CircleRepository) ListActivities(ctx context.Context, userID string) ([]persistence.Activity, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, circle_id, kind, created_at
		FROM activities WHERE user_id = ? ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	activities := make([]persistence.Activity, 0)
	for rows.Next() {
		var activity persistence.Activity
		var circleID sql.NullString
		var createdAt string
		if err := rows.Scan(&activity.ID, &activity.UserID, &circleID, &activity.Kind, &createdAt); err != nil {
			return nil, mapError(err)
		}
		if circleID.Valid {
			value := circleID.String
			activity.CircleID = &value
		}
		if activity.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}
