package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

const wallClockLayout = "15:04"

// ScheduleService manages recurring app blocking windows.
type ScheduleService struct {
	schedules   persistence.AppScheduleRepository
	integrity   *IntegrityChecker
	idGenerator func() string
	clock       func() time.Time
	logger      *slog.Logger
}

// NewScheduleService creates a schedule service.
func NewScheduleService(
	schedules persistence.AppScheduleRepository,
	integrity *IntegrityChecker,
	idGenerator func() string,
	clock func() time.Time,
	logger *slog.Logger,
) (*ScheduleService, error) {
	if schedules == nil {
		return nil, errors.New("schedule repository is required")
	}
	if integrity == nil {
		return nil, errors.New("integrity checker is required")
	}
	if idGenerator == nil {
		return nil, errors.New("id generator is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}

	return &ScheduleService{
		schedules:   schedules,
		integrity:   integrity,
		idGenerator: idGenerator,
		clock:       clock,
		logger:      defaultLogger(logger),
	}, nil
}

// CreateSchedule stores a new blocking window for the principal. The
// referenced app must exist in the catalog.
func (s *ScheduleService) CreateSchedule(ctx context.Context, principal Principal, params ScheduleParams) (persistence.AppSchedule, error) {
	logger := serviceLogger(ctx, s.logger, "schedule", "create", "user_id", principal.UserID)

	if vErr := validateScheduleParams(params, true); vErr.HasErrors() {
		logger.WarnContext(ctx, "schedule rejected", "error_kind", ErrorKind(vErr))
		return persistence.AppSchedule{}, vErr
	}

	if err := s.integrity.VerifyAppExists(ctx, params.AppID); err != nil {
		return persistence.AppSchedule{}, err
	}

	isActive := true
	if params.IsActive != nil {
		isActive = *params.IsActive
	}

	now := s.clock()
	schedule := persistence.AppSchedule{
		ID:         s.idGenerator(),
		UserID:     principal.UserID,
		AppID:      params.AppID,
		DaysOfWeek: params.DaysOfWeek,
		StartTime:  params.StartTime,
		EndTime:    params.EndTime,
		IsActive:   isActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.schedules.CreateSchedule(ctx, schedule); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			return persistence.AppSchedule{}, fmt.Errorf("schedule references missing row: %w", ErrNotFound)
		}
		logger.ErrorContext(ctx, "schedule creation failed", "error", err)
		return persistence.AppSchedule{}, fmt.Errorf("create schedule: %w", err)
	}

	logger.InfoContext(ctx, "schedule created", "schedule_id", schedule.ID, "app_id", schedule.AppID)
	return schedule, nil
}

// UpdateSchedule applies a partial update to a schedule the principal
// owns. When the update changes the app, the new app's existence is
// verified; an unchanged app is trusted as already verified at create.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, principal Principal, scheduleID string, params ScheduleParams) (persistence.AppSchedule, error) {
	logger := serviceLogger(ctx, s.logger, "schedule", "update", "user_id", principal.UserID)

	schedule, err := s.ownedSchedule(ctx, principal, scheduleID)
	if err != nil {
		return persistence.AppSchedule{}, err
	}

	if vErr := validateScheduleParams(params, false); vErr.HasErrors() {
		logger.WarnContext(ctx, "schedule update rejected", "error_kind", ErrorKind(vErr))
		return persistence.AppSchedule{}, vErr
	}

	if params.AppID != "" && params.AppID != schedule.AppID {
		if err := s.integrity.VerifyAppExists(ctx, params.AppID); err != nil {
			return persistence.AppSchedule{}, err
		}
		schedule.AppID = params.AppID
	}
	if params.DaysOfWeek != nil {
		schedule.DaysOfWeek = params.DaysOfWeek
	}
	if params.StartTime != "" {
		schedule.StartTime = params.StartTime
	}
	if params.EndTime != "" {
		schedule.EndTime = params.EndTime
	}
	if params.IsActive != nil {
		schedule.IsActive = *params.IsActive
	}
	schedule.UpdatedAt = s.clock()

	if err := s.schedules.UpdateSchedule(ctx, schedule); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.AppSchedule{}, ErrNotFound
		}
		logger.ErrorContext(ctx, "schedule update failed", "error", err, "schedule_id", scheduleID)
		return persistence.AppSchedule{}, fmt.Errorf("update schedule: %w", err)
	}

	logger.InfoContext(ctx, "schedule updated", "schedule_id", scheduleID)
	return schedule, nil
}

// DeleteSchedule removes a schedule the principal owns.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, principal Principal, scheduleID string) error {
	logger := serviceLogger(ctx, s.logger, "schedule", "delete", "user_id", principal.UserID)

	if _, err := s.ownedSchedule(ctx, principal, scheduleID); err != nil {
		return err
	}

	if err := s.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		logger.ErrorContext(ctx, "schedule deletion failed", "error", err, "schedule_id", scheduleID)
		return fmt.Errorf("delete schedule: %w", err)
	}

	logger.InfoContext(ctx, "schedule deleted", "schedule_id", scheduleID)
	return nil
}

// ListSchedules returns all schedules owned by the principal.
func (s *ScheduleService) ListSchedules(ctx context.Context, principal Principal) ([]persistence.AppSchedule, error) {
	schedules, err := s.schedules.ListSchedules(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) ownedSchedule(ctx context.Context, principal Principal, scheduleID string) (persistence.AppSchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.AppSchedule{}, ErrNotFound
	}
	if err != nil {
		return persistence.AppSchedule{}, fmt.Errorf("get schedule: %w", err)
	}
	if err := s.integrity.VerifyOwnership(ctx, principal.UserID, schedule.UserID); err != nil {
		return persistence.AppSchedule{}, err
	}
	return schedule, nil
}

// validateScheduleParams checks schedule inputs. On create every field is
// required; on update only supplied fields are checked.
func validateScheduleParams(params ScheduleParams, requireAll bool) *ValidationError {
	vErr := &ValidationError{}

	if requireAll && params.AppID == "" {
		vErr.add("app_id", "app id is required")
	}

	if requireAll && len(params.DaysOfWeek) == 0 {
		vErr.add("days_of_week", "at least one day is required")
	}
	for _, day := range params.DaysOfWeek {
		if day < 0 || day > 6 {
			vErr.add("days_of_week", "days must be between 0 (Sunday) and 6 (Saturday)")
			break
		}
	}

	if requireAll || params.StartTime != "" {
		if _, err := time.Parse(wallClockLayout, params.StartTime); err != nil {
			vErr.add("start_time", "start time must be formatted HH:MM")
		}
	}
	if requireAll || params.EndTime != "" {
		if _, err := time.Parse(wallClockLayout, params.EndTime); err != nil {
			vErr.add("end_time", "end time must be formatted HH:MM")
		}
	}

	return vErr
}
