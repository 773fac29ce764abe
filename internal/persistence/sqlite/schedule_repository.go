package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// AppScheduleRepository implements persistence.AppScheduleRepository using SQLite.
type AppScheduleRepository struct {
	db *DB
}

// NewAppScheduleRepository creates a SQLite-backed schedule repository.
func NewAppScheduleRepository(db *DB) *AppScheduleRepository {
	return &AppScheduleRepository{db: db}
}

// CreateSchedule stores a new blocking window.
func (r *AppScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.AppSchedule) error {
	if schedule.ID == "" || schedule.UserID == "" || schedule.AppID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO app_schedules (id, user_id, app_id, days_of_week, start_time, end_time, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		schedule.ID,
		schedule.UserID,
		schedule.AppID,
		encodeDays(schedule.DaysOfWeek),
		schedule.StartTime,
		schedule.EndTime,
		boolToInt(schedule.IsActive),
		schedule.CreatedAt.UTC().Format(time.RFC3339),
		schedule.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

// GetSchedule retrieves a blocking window by ID.
func (r *AppScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.AppSchedule, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, app_id, days_of_week, start_time, end_time, is_active, created_at, updated_at
		FROM app_schedules WHERE id = ?
	`, id)

	var schedule persistence.AppSchedule
	var days string
	var isActive int
	var createdAt, updatedAt string

	err := row.Scan(&schedule.ID, &schedule.UserID, &schedule.AppID, &days, &schedule.StartTime, &schedule.EndTime, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return persistence.AppSchedule{}, mapError(err)
	}

	schedule.DaysOfWeek = decodeDays(days)
	schedule.IsActive = isActive != 0
	if schedule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return persistence.AppSchedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	if schedule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return persistence.AppSchedule{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return schedule, nil
}

// UpdateSchedule persists field changes on an existing window. The owning
// user reference is immutable.
func (r *AppScheduleRepository) UpdateSchedule(ctx context.Context, schedule persistence.AppSchedule) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE app_schedules
		SET app_id = ?, days_of_week = ?, start_time = ?, end_time = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		schedule.AppID,
		encodeDays(schedule.DaysOfWeek),
		schedule.StartTime,
		schedule.EndTime,
		boolToInt(schedule.IsActive),
		schedule.UpdatedAt.UTC().Format(time.RFC3339),
		schedule.ID,
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

// DeleteSchedule removes a blocking window by ID.
func (r *AppScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM app_schedules WHERE id = ?`, id)
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

// ListSchedules returns a user's blocking windows ordered by creation time.
func (r *AppScheduleRepository) ListSchedules(ctx context.Context, userID string) ([]persistence.AppSchedule, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, app_id, days_of_week, start_time, end_time, is_active, created_at, updated_at
		FROM app_schedules WHERE user_id = ? ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	schedules := make([]persistence.AppSchedule, 0)
	for rows.Next() {
		var schedule persistence.AppSchedule
		var days string
		var isActive int
		var createdAt, updatedAt string
		if err := rows.Scan(&schedule.ID, &schedule.UserID, &schedule.AppID, &days, &schedule.StartTime, &schedule.EndTime, &isActive, &createdAt, &updatedAt); err != nil {
			return nil, mapError(err)
		}
		schedule.DaysOfWeek = decodeDays(days)
		schedule.IsActive = isActive != 0
		if schedule.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if schedule.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func encodeDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, day := range days {
		parts = append(parts, strconv.Itoa(day))
	}
	return strings.Join(parts, ",")
}

func decodeDays(value string) []int {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	return days
}
