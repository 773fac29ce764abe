package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

const civilDateLayout = "2006-01-02"

// UsageReconciler merges usage reports into per-day aggregates and keeps
// the user's streak counters consistent with recorded activity.
type UsageReconciler struct {
	usage     persistence.UsageRepository
	users     persistence.UserRepository
	integrity *IntegrityChecker
	clock     func() time.Time
	logger    *slog.Logger
}

// NewUsageReconciler creates a usage reconciler.
func NewUsageReconciler(
	usage persistence.UsageRepository,
	users persistence.UserRepository,
	integrity *IntegrityChecker,
	clock func() time.Time,
	logger *slog.Logger,
) (*UsageReconciler, error) {
	if usage == nil {
		return nil, errors.New("usage repository is required")
	}
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if integrity == nil {
		return nil, errors.New("integrity checker is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}

	return &UsageReconciler{
		usage:     usage,
		users:     users,
		integrity: integrity,
		clock:     clock,
		logger:    defaultLogger(logger),
	}, nil
}

// RecordUsage merges a usage report into the (user, app, day) aggregate.
// The merge is additive: duration and session counts accumulate, they are
// never overwritten, so repeated or concurrent reports cannot lose data.
// A successful merge also advances the user's streak for the reported day.
func (s *UsageReconciler) RecordUsage(ctx context.Context, principal Principal, params RecordUsageParams) (persistence.AppUsageRecord, error) {
	logger := serviceLogger(ctx, s.logger, "usage", "record", "user_id", principal.UserID)

	date := params.Date
	if date == "" {
		date = s.clock().UTC().Format(civilDateLayout)
	}

	vErr := &ValidationError{}
	if params.AppID == "" {
		vErr.add("app_id", "app id is required")
	}
	if _, err := time.Parse(civilDateLayout, date); err != nil {
		vErr.add("date", "date must be formatted YYYY-MM-DD")
	}
	if params.DurationMinutes < 0 {
		vErr.add("duration_minutes", "duration must not be negative")
	}
	if params.SessionsCount < 0 {
		vErr.add("sessions_count", "sessions count must not be negative")
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "usage report rejected", "error_kind", ErrorKind(vErr))
		return persistence.AppUsageRecord{}, vErr
	}

	if err := s.integrity.VerifyAppExists(ctx, params.AppID); err != nil {
		return persistence.AppUsageRecord{}, err
	}

	merged, err := s.usage.MergeUsage(ctx, persistence.AppUsageRecord{
		UserID:          principal.UserID,
		AppID:           params.AppID,
		Date:            date,
		DurationMinutes: params.DurationMinutes,
		SessionsCount:   params.SessionsCount,
		UpdatedAt:       s.clock(),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			return persistence.AppUsageRecord{}, fmt.Errorf("usage references missing row: %w", ErrNotFound)
		}
		logger.ErrorContext(ctx, "usage merge failed", "error", err, "app_id", params.AppID)
		return persistence.AppUsageRecord{}, fmt.Errorf("merge usage: %w", err)
	}

	if err := s.AdvanceStreak(ctx, principal.UserID, date); err != nil {
		logger.ErrorContext(ctx, "streak update failed", "error", err)
		return persistence.AppUsageRecord{}, err
	}

	logger.InfoContext(ctx, "usage merged",
		"app_id", params.AppID,
		"date", date,
		"duration_minutes", merged.DurationMinutes,
		"sessions_count", merged.SessionsCount,
	)
	return merged, nil
}

// ListUsage returns the principal's usage aggregates matching the filter.
func (s *UsageReconciler) ListUsage(ctx context.Context, principal Principal, params ListUsageParams) ([]persistence.AppUsageRecord, error) {
	vErr := &ValidationError{}
	for field, value := range map[string]string{
		"date":       params.Date,
		"start_date": params.StartDate,
		"end_date":   params.EndDate,
	} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(civilDateLayout, value); err != nil {
			vErr.add(field, "date must be formatted YYYY-MM-DD")
		}
	}
	if params.Limit < 0 {
		vErr.add("limit", "limit must not be negative")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	records, err := s.usage.ListUsage(ctx, persistence.UsageFilter{
		UserID:    principal.UserID,
		AppID:     params.AppID,
		Date:      params.Date,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Limit:     params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return records, nil
}

// AdvanceStreak reconciles the user's streak counters against an activity
// on the given civil date. Activity on the same day as the last recorded
// activity is a no-op, consecutive-day activity extends the streak, and a
// gap resets it to one. The longest streak only ever grows.
func (s *UsageReconciler) AdvanceStreak(ctx context.Context, userID, date string) error {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	day, err := time.Parse(civilDateLayout, date)
	if err != nil {
		return fmt.Errorf("parse activity date: %w", err)
	}

	current := 1
	if user.LastActivityDate != nil {
		last, err := time.Parse(civilDateLayout, *user.LastActivityDate)
		if err != nil {
			return fmt.Errorf("parse last activity date: %w", err)
		}
		switch day.Sub(last) {
		case 0:
			return nil
		case 24 * time.Hour:
			current = user.CurrentStreak + 1
		}
	}

	longest := user.LongestStreak
	if current > longest {
		longest = current
	}

	if err := s.users.UpdateStreak(ctx, userID, current, longest, date); err != nil {
		return fmt.Errorf("update streak: %w", err)
	}

	serviceLogger(ctx, s.logger, "usage", "advance_streak", "user_id", userID).
		InfoContext(ctx, "streak updated", "current", current, "longest", longest, "date", date)
	return nil
}
