package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// UsageRepository implements persistence.UsageRepository using SQLite.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a SQLite-backed usage repository.
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// MergeUsage upserts a usage observation additively. The increment happens
// inside the conflict clause so concurrent writers for the same
// (user, app, date) key cannot lose updates.
func (r *UsageRepository) MergeUsage(ctx context.Context, record persistence.AppUsageRecord) (persistence.AppUsageRecord, error) {
	if record.UserID == "" || record.AppID == "" || record.Date == "" {
		return persistence.AppUsageRecord{}, persistence.ErrConstraintViolation
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO app_usage (user_id, app_id, date, duration_minutes, sessions_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, app_id, date) DO UPDATE SET
			duration_minutes = duration_minutes + excluded.duration_minutes,
			sessions_count = sessions_count + excluded.sessions_count,
			updated_at = excluded.updated_at
	`,
		record.UserID,
		record.AppID,
		record.Date,
		record.DurationMinutes,
		record.SessionsCount,
		updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return persistence.AppUsageRecord{}, mapError(err)
	}

	return r.getRecord(ctx, record.UserID, record.AppID, record.Date)
}

// ListUsage returns usage aggregates matching the filter, newest date first.
func (r *UsageRepository) ListUsage(ctx context.Context, filter persistence.UsageFilter) ([]persistence.AppUsageRecord, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT user_id, app_id, date, duration_minutes, sessions_count, updated_at
		FROM app_usage WHERE user_id = ?
	`)
	args := []any{filter.UserID}

	if filter.AppID != "" {
		query.WriteString(" AND app_id = ?")
		args = append(args, filter.AppID)
	}
	if filter.Date != "" {
		query.WriteString(" AND date = ?")
		args = append(args, filter.Date)
	}
	if filter.StartDate != "" {
		query.WriteString(" AND date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query.WriteString(" AND date <= ?")
		args = append(args, filter.EndDate)
	}
	query.WriteString(" ORDER BY date DESC, app_id")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.db.conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	records := make([]persistence.AppUsageRecord, 0)
	for rows.Next() {
		record, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *UsageRepository) getRecord(ctx context.Context, userID, appID, date string) (persistence.AppUsageRecord, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT user_id, app_id, date, duration_minutes, sessions_count, updated_at
		FROM app_usage WHERE user_id = ? AND app_id = ? AND date = ?
	`, userID, appID, date)
	return scanUsage(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsage(row rowScanner) (persistence.AppUsageRecord, error) {
	var record persistence.AppUsageRecord
	var updatedAt string
	err := row.Scan(
		&record.UserID,
		&record.AppID,
		&record.Date,
		&record.DurationMinutes,
		&record.SessionsCount,
		&updatedAt,
	)
	if err != nil {
		return persistence.AppUsageRecord{}, mapError(err)
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.AppUsageRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return record, nil
}
