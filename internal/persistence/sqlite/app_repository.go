package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// AppRepository implements persistence.AppRepository and
// persistence.UserAppRepository using SQLite.
type AppRepository struct {
	db *DB
}

// NewAppRepository creates a SQLite-backed app repository.
func NewAppRepository(db *DB) *AppRepository {
	return &AppRepository{db: db}
}

// CreateApp stores a catalog entry. Catalog rows are reference data seeded
// at deploy time.
func (r *AppRepository) CreateApp(ctx context.Context, app persistence.TrackedApp) error {
	if app.ID == "" || strings.TrimSpace(app.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO tracked_apps (id, name, category) VALUES (?, ?, ?)
	`, app.ID, app.Name, app.Category)
	return mapError(err)
}

// GetApp retrieves a catalog entry by ID.
func (r *AppRepository) GetApp(ctx context.Context, id string) (persistence.TrackedApp, error) {
	var app persistence.TrackedApp
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, name, category FROM tracked_apps WHERE id = ?
	`, id).Scan(&app.ID, &app.Name, &app.Category)
	if err != nil {
		return persistence.TrackedApp{}, mapError(err)
	}
	return app, nil
}

// ListApps returns the catalog ordered by name.
func (r *AppRepository) ListApps(ctx context.Context) ([]persistence.TrackedApp, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, name, category FROM tracked_apps ORDER BY name, id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	apps := make([]persistence.TrackedApp, 0)
	for rows.Next() {
		var app persistence.TrackedApp
		if err := rows.Scan(&app.ID, &app.Name, &app.Category); err != nil {
			return nil, mapError(err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// MissingAppIDs returns the subset of ids with no catalog entry.
func (r *AppRepository) MissingAppIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	missing := make([]string, 0)
	for _, id := range ids {
		var found string
		err := r.db.conn.QueryRowContext(ctx, `SELECT id FROM tracked_apps WHERE id = ?`, id).Scan(&found)
		if err != nil {
			if mapError(err) == persistence.ErrNotFound {
				missing = append(missing, id)
				continue
			}
			return nil, mapError(err)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return missing, nil
}

// CreateLink stores a user-app link. The (user_id, app_id) unique
// constraint surfaces duplicates as persistence.ErrDuplicate.
func (r *AppRepository) CreateLink(ctx context.Context, link persistence.UserAppLink) error {
	if link.ID == "" || link.UserID == "" || link.AppID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO user_apps (id, user_id, app_id, is_tracked, is_blocked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		link.ID,
		link.UserID,
		link.AppID,
		boolToInt(link.IsTracked),
		boolToInt(link.IsBlocked),
		link.CreatedAt.UTC().Format(time.RFC3339),
		link.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetLink retrieves a user-app link by ID.
func (r *AppRepository) GetLink(ctx context.Context, id string) (persistence.UserAppLink, error) {
	var link persistence.UserAppLink
	var isTracked, isBlocked int
	var createdAt, updatedAt string

	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, app_id, is_tracked, is_blocked, created_at, updated_at
		FROM user_apps WHERE id = ?
	`, id).Scan(&link.ID, &link.UserID, &link.AppID, &isTracked, &isBlocked, &createdAt, &updatedAt)
	if err != nil {
		return persistence.UserAppLink{}, mapError(err)
	}

	link.IsTracked = isTracked != 0
	link.IsBlocked = isBlocked != 0
	if link.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.UserAppLink{}, fmt.Errorf("parse created_at: %w", err)
	}
	if link.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.UserAppLink{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return link, nil
}

// UpdateLink persists flag changes on an existing link. User and app
// references are immutable.
func (r *AppRepository) UpdateLink(ctx context.Context, link persistence.UserAppLink) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE user_apps SET is_tracked = ?, is_blocked = ?, updated_at = ? WHERE id = ?
	`,
		boolToInt(link.IsTracked),
		boolToInt(link.IsBlocked),
		link.UpdatedAt.UTC().Format(time.RFC3339),
		link.ID,
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

// ListLinks returns a user's app links ordered by creation time.
func (r *AppRepository) ListLinks(ctx context.Context, userID string) ([]persistence.UserAppLink, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, app_id, is_tracked, is_blocked, created_at, updated_at
		FROM user_apps WHERE user_id = ? ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	links := make([]persistence.UserAppLink, 0)
	for rows.Next() {
		var link persistence.UserAppLink
		var isTracked, isBlocked int
		var createdAt, updatedAt string
		if err := rows.Scan(&link.ID, &link.UserID, &link.AppID, &isTracked, &isBlocked, &createdAt, &updatedAt); err != nil {
			return nil, mapError(err)
		}
		link.IsTracked = isTracked != 0
		link.IsBlocked = isBlocked != 0
		if link.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if link.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
