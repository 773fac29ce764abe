package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// FriendRepository implements persistence.FriendRepository using SQLite.
type FriendRepository struct {
	db *DB
}

// NewFriendRepository creates a SQLite-backed friend repository.
func NewFriendRepository(db *DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// CreateFriend stores a directed friendship edge. The (user_id, friend_id)
// unique constraint surfaces duplicate edges as persistence.ErrDuplicate.
func (r *FriendRepository) CreateFriend(ctx context.Context, friend persistence.Friend) error {
	if friend.ID == "" || friend.UserID == "" || friend.FriendID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO friends (id, user_id, friend_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		friend.ID,
		friend.UserID,
		friend.FriendID,
		friend.Status,
		friend.CreatedAt.UTC().Format(time.RFC3339),
		friend.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetFriend retrieves an edge by ID.
func (r *FriendRepository) GetFriend(ctx context.Context, id string) (persistence.Friend, error) {
	return scanFriend(r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friends WHERE id = ?
	`, id))
}

// GetEdge retrieves the directed edge from userID to friendID.
func (r *FriendRepository) GetEdge(ctx context.Context, userID, friendID string) (persistence.Friend, error) {
	return scanFriend(r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friends WHERE user_id = ? AND friend_id = ?
	`, userID, friendID))
}

// UpdateFriendStatus moves an edge to a new status.
func (r *FriendRepository) UpdateFriendStatus(ctx context.Context, id string, status string, updatedAt time.Time) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE friends SET status = ?, updated_at = ? WHERE id = ?
	`, status, updatedAt.UTC().Format(time.RFC3339), id)
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

// ListFriends returns edges matching the filter. Direction "outgoing"
// matches edges the user created, "incoming" matches edges pointing at the
// user, and empty matches both.
func (r *FriendRepository) ListFriends(ctx context.Context, filter persistence.FriendFilter) ([]persistence.Friend, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, user_id, friend_id, status, created_at, updated_at FROM friends WHERE
	`)
	args := make([]any, 0, 3)

	switch filter.Direction {
	case "outgoing":
		query.WriteString(" user_id = ?")
		args = append(args, filter.UserID)
	case "incoming":
		query.WriteString(" friend_id = ?")
		args = append(args, filter.UserID)
	default:
		query.WriteString(" (user_id = ? OR friend_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}

	if filter.Status != "" {
		query.WriteString(" AND status = ?")
		args = append(args, filter.Status)
	}
	query.WriteString(" ORDER BY created_at, id")

	rows, err := r.db.conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	friends := make([]persistence.Friend, 0)
	for rows.Next() {
		friend, err := scanFriendRow(rows)
		if err != nil {
			return nil, err
		}
		friends = append(friends, friend)
	}
	return friends, rows.Err()
}

func scanFriend(row *sql.Row) (persistence.Friend, error) {
	return scanFriendRow(row)
}

func scanFriendRow(row rowScanner) (persistence.Friend, error) {
	var friend persistence.Friend
	var createdAt, updatedAt string

	err := row.Scan(&friend.ID, &friend.UserID, &friend.FriendID, &friend.Status, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Friend{}, mapError(err)
	}

	if friend.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.Friend{}, fmt.Errorf("parse created_at: %w", err)
	}
	if friend.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.Friend{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return friend, nil
}
