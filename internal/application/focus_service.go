package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/focusguard/internal/focus"
	"github.com/example/focusguard/internal/persistence"
)

// FocusSessionView is a focus session row together with its locked apps.
type FocusSessionView struct {
	Session      persistence.FocusSession
	Apps         []persistence.SessionApp
	MinutesSaved int
}

// userSession couples a running state machine with its persisted row and
// the ticker driving its countdown.
type userSession struct {
	machine   *focus.Machine
	sessionID string
	ticker    *focus.Ticker
}

// SessionEngine owns the per-user focus-session state machines and keeps
// them consistent with the persisted session rows. The durable guarantee
// of at most one active session per user lives in storage; the in-memory
// machine is working state that is rebuilt from the row when needed.
type SessionEngine struct {
	sessions    persistence.FocusSessionRepository
	activities  persistence.ActivityRepository
	reconciler  *UsageReconciler
	integrity   *IntegrityChecker
	idGenerator func() string
	clock       func() time.Time
	tickPeriod  time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]*userSession
}

// NewSessionEngine creates a session engine. tickPeriod controls how often
// running sessions accrue elapsed time; zero selects one second.
func NewSessionEngine(
	sessions persistence.FocusSessionRepository,
	activities persistence.ActivityRepository,
	reconciler *UsageReconciler,
	integrity *IntegrityChecker,
	idGenerator func() string,
	clock func() time.Time,
	tickPeriod time.Duration,
	logger *slog.Logger,
) (*SessionEngine, error) {
	if sessions == nil {
		return nil, errors.New("focus session repository is required")
	}
	if activities == nil {
		return nil, errors.New("activity repository is required")
	}
	if reconciler == nil {
		return nil, errors.New("usage reconciler is required")
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
	if tickPeriod <= 0 {
		tickPeriod = time.Second
	}

	return &SessionEngine{
		sessions:    sessions,
		activities:  activities,
		reconciler:  reconciler,
		integrity:   integrity,
		idGenerator: idGenerator,
		clock:       clock,
		tickPeriod:  tickPeriod,
		logger:      defaultLogger(logger),
		active:      make(map[string]*userSession),
	}, nil
}

// StartSession starts a focus session over the given apps. If the user
// already has an active session the request merges into it instead: the
// new apps join the running session and its elapsed time is untouched.
func (s *SessionEngine) StartSession(ctx context.Context, principal Principal, params StartSessionParams) (FocusSessionView, error) {
	logger := serviceLogger(ctx, s.logger, "focus", "start_session", "user_id", principal.UserID)

	vErr := &ValidationError{}
	if len(params.AppIDs) == 0 {
		vErr.add("app_ids", "at least one app must be selected")
	}
	if params.ScheduledDuration <= 0 {
		vErr.add("scheduled_duration", "scheduled duration must be positive")
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "session start rejected", "error_kind", ErrorKind(vErr))
		return FocusSessionView{}, vErr
	}

	// Integrity gate before any row exists. A single missing app rejects
	// the whole request.
	if err := s.integrity.VerifyAppsExist(ctx, params.AppIDs); err != nil {
		return FocusSessionView{}, err
	}

	breaksAllowed := focus.DefaultBreaks
	if params.BreaksAllowed != nil {
		breaksAllowed = *params.BreaksAllowed
		if breaksAllowed < focus.MinBreaks {
			breaksAllowed = focus.MinBreaks
		}
		if breaksAllowed > focus.MaxBreaks {
			breaksAllowed = focus.MaxBreaks
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	session := persistence.FocusSession{
		ID:                s.idGenerator(),
		UserID:            principal.UserID,
		StartTime:         now,
		ScheduledDuration: params.ScheduledDuration,
		BreaksAllowed:     breaksAllowed,
		Status:            persistence.SessionStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := createWithCompensation(ctx, logger,
		func() error { return s.sessions.CreateSession(ctx, session) },
		func() error { return s.sessions.AddSessionApps(ctx, session.ID, params.AppIDs) },
		func() error { return s.sessions.DeleteSession(ctx, session.ID) },
	)
	if errors.Is(err, persistence.ErrDuplicate) {
		// The partial unique index caught a concurrent or earlier start.
		// Merge into the session that won.
		return s.mergeIntoActiveLocked(ctx, logger, principal.UserID, params.AppIDs)
	}
	if err != nil {
		logger.ErrorContext(ctx, "session start failed", "error", err)
		return FocusSessionView{}, fmt.Errorf("start session: %w", err)
	}

	machine := focus.NewMachine()
	if mErr := machine.OpenPicker(); mErr == nil {
		if mErr = machine.SelectApps(params.AppIDs); mErr == nil {
			for machine.BreaksAllowed() < breaksAllowed {
				machine.AdjustBreaks(1)
			}
			for machine.BreaksAllowed() > breaksAllowed {
				machine.AdjustBreaks(-1)
			}
			mErr = machine.Activate(params.ScheduledDuration, now)
		}
		if mErr != nil {
			logger.ErrorContext(ctx, "machine activation failed", "error", mErr)
		}
	}

	s.trackLocked(principal.UserID, &userSession{machine: machine, sessionID: session.ID})

	logger.InfoContext(ctx, "session started",
		"session_id", session.ID,
		"app_count", len(params.AppIDs),
		"scheduled_duration", params.ScheduledDuration,
		"breaks_allowed", breaksAllowed,
	)
	return s.viewLocked(ctx, session.ID, machine)
}

// mergeIntoActiveLocked folds a start request into the user's existing
// active session. Caller holds s.mu.
func (s *SessionEngine) mergeIntoActiveLocked(ctx context.Context, logger *slog.Logger, userID string, appIDs []string) (FocusSessionView, error) {
	row, err := s.sessions.GetActiveSession(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		// The competing session finished between our insert and this read.
		return FocusSessionView{}, fmt.Errorf("active session vanished during merge: %w", ErrNotFound)
	}
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("load active session: %w", err)
	}

	// Idempotent join insert: apps already locked are skipped.
	if err := s.sessions.AddSessionApps(ctx, row.ID, appIDs); err != nil {
		logger.ErrorContext(ctx, "merge failed", "error", err, "session_id", row.ID)
		return FocusSessionView{}, fmt.Errorf("merge apps into session: %w", err)
	}

	us := s.active[userID]
	if us == nil || us.sessionID != row.ID {
		us = s.resumeLocked(userID, row, appIDs)
	} else if mErr := us.machine.AddApps(appIDs); mErr != nil {
		logger.ErrorContext(ctx, "machine rejected app merge", "error", mErr, "session_id", row.ID)
	}

	logger.InfoContext(ctx, "merged into active session", "session_id", row.ID, "app_count", len(appIDs))
	return s.viewLocked(ctx, row.ID, us.machine)
}

// resumeLocked rebuilds working state for a persisted active session this
// process has no machine for. Caller holds s.mu.
func (s *SessionEngine) resumeLocked(userID string, row persistence.FocusSession, appIDs []string) *userSession {
	machine := focus.NewMachine()
	machine.Resume(appIDs, row.ScheduledDuration, row.StartTime, row.BreaksAllowed, row.BreaksUsed, s.clock())
	us := &userSession{machine: machine, sessionID: row.ID}
	s.trackLocked(userID, us)
	return us
}

// trackLocked registers the user's working session and starts its ticker.
// Caller holds s.mu.
func (s *SessionEngine) trackLocked(userID string, us *userSession) {
	if prev := s.active[userID]; prev != nil && prev.ticker != nil {
		go prev.ticker.Stop()
	}
	s.active[userID] = us
	us.ticker = focus.StartTicker(s.tickPeriod, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.active[userID] == us {
			us.machine.Tick()
		}
	})
}

// GetActiveSession returns the user's active session, or ErrNotFound when
// none is running.
func (s *SessionEngine) GetActiveSession(ctx context.Context, principal Principal) (FocusSessionView, error) {
	row, err := s.sessions.GetActiveSession(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return FocusSessionView{}, ErrNotFound
	}
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("load active session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	us := s.active[principal.UserID]
	if us == nil || us.sessionID != row.ID {
		apps, err := s.sessions.ListSessionApps(ctx, row.ID)
		if err != nil {
			return FocusSessionView{}, fmt.Errorf("list session apps: %w", err)
		}
		ids := make([]string, 0, len(apps))
		for _, app := range apps {
			ids = append(ids, app.AppID)
		}
		us = s.resumeLocked(principal.UserID, row, ids)
	}
	return s.viewLocked(ctx, row.ID, us.machine)
}

// UseBreak consumes one break from the active session's budget. Exhausted
// budgets make this a no-op; the returned view reflects the outcome.
func (s *SessionEngine) UseBreak(ctx context.Context, principal Principal) (FocusSessionView, error) {
	logger := serviceLogger(ctx, s.logger, "focus", "use_break", "user_id", principal.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	us, err := s.workingSessionLocked(ctx, principal.UserID)
	if err != nil {
		return FocusSessionView{}, err
	}

	if us.machine.UseBreak() {
		if err := s.sessions.UpdateBreaksUsed(ctx, us.sessionID, us.machine.BreaksUsed()); err != nil {
			logger.ErrorContext(ctx, "break persistence failed", "error", err, "session_id", us.sessionID)
			return FocusSessionView{}, fmt.Errorf("persist break: %w", err)
		}
		logger.InfoContext(ctx, "break consumed",
			"session_id", us.sessionID,
			"breaks_used", us.machine.BreaksUsed(),
			"breaks_allowed", us.machine.BreaksAllowed(),
		)
	}
	return s.viewLocked(ctx, us.sessionID, us.machine)
}

// EndSession finalizes the active session into a terminal status, credits
// the saved minutes to every locked app, records an activity entry, and
// returns the user to the rest state. Ending early with an override earns
// the same per-minute credit as completing.
func (s *SessionEngine) EndSession(ctx context.Context, principal Principal, params EndSessionParams) (FocusSessionView, error) {
	logger := serviceLogger(ctx, s.logger, "focus", "end_session", "user_id", principal.UserID)

	terminal := params.Status
	if terminal == "" {
		terminal = persistence.SessionStatusCompleted
	}
	if terminal != persistence.SessionStatusCompleted && terminal != persistence.SessionStatusOverridden {
		vErr := &ValidationError{}
		vErr.add("status", "status must be completed or overridden")
		return FocusSessionView{}, vErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	us, err := s.workingSessionLocked(ctx, principal.UserID)
	if err != nil {
		return FocusSessionView{}, err
	}
	if params.SessionID != "" && params.SessionID != us.sessionID {
		return FocusSessionView{}, fmt.Errorf("session %s is not active: %w", params.SessionID, ErrNotFound)
	}

	// Stop must not run under s.mu: the tick callback takes the same
	// mutex, so a pending tick would deadlock a synchronous stop. The
	// active-map check in the callback makes a late tick a no-op.
	if us.ticker != nil {
		go us.ticker.Stop()
	}
	delete(s.active, principal.UserID)

	lockedApps := us.machine.LockedApps()
	minutesSaved := us.machine.MinutesSaved()
	now := s.clock()
	if _, err := us.machine.Finalize(terminalState(terminal), now); err != nil {
		return FocusSessionView{}, fmt.Errorf("finalize machine: %w", err)
	}

	if err := s.sessions.FinalizeSession(ctx, us.sessionID, terminal, now); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return FocusSessionView{}, fmt.Errorf("session already finalized: %w", ErrNotFound)
		}
		logger.ErrorContext(ctx, "session finalize failed", "error", err, "session_id", us.sessionID)
		return FocusSessionView{}, fmt.Errorf("finalize session: %w", err)
	}

	// Every locked app earns the same credit; saved time is a property of
	// the session, not of individual apps.
	if err := s.sessions.SetMinutesSaved(ctx, us.sessionID, minutesSaved); err != nil {
		logger.ErrorContext(ctx, "minutes-saved persistence failed", "error", err, "session_id", us.sessionID)
		return FocusSessionView{}, fmt.Errorf("persist minutes saved: %w", err)
	}

	date := now.UTC().Format(civilDateLayout)
	for _, appID := range lockedApps {
		if _, err := s.reconciler.RecordUsage(ctx, principal, RecordUsageParams{
			AppID:           appID,
			Date:            date,
			DurationMinutes: minutesSaved,
			SessionsCount:   1,
		}); err != nil {
			logger.ErrorContext(ctx, "usage credit failed", "error", err, "session_id", us.sessionID, "app_id", appID)
			return FocusSessionView{}, fmt.Errorf("credit usage for app %s: %w", appID, err)
		}
	}

	if err := s.activities.CreateActivity(ctx, persistence.Activity{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		Kind:      "focus_" + terminal,
		CreatedAt: now,
	}); err != nil {
		// The session itself ended cleanly; a missing feed entry is not
		// worth failing the request over.
		logger.WarnContext(ctx, "activity entry failed", "error", err, "session_id", us.sessionID)
	}

	logger.InfoContext(ctx, "session ended",
		"session_id", us.sessionID,
		"status", terminal,
		"minutes_saved", minutesSaved,
		"app_count", len(lockedApps),
	)

	row, err := s.sessions.GetSession(ctx, us.sessionID)
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("load finalized session: %w", err)
	}
	apps, err := s.sessions.ListSessionApps(ctx, us.sessionID)
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("list session apps: %w", err)
	}
	return FocusSessionView{Session: row, Apps: apps, MinutesSaved: minutesSaved}, nil
}

// UpdateSession is the declared-but-unbacked mutation surface for session
// rows. It reports not-implemented so clients get an explicit signal
// instead of silent acceptance.
func (s *SessionEngine) UpdateSession(ctx context.Context, principal Principal, sessionID string) error {
	serviceLogger(ctx, s.logger, "focus", "update_session", "user_id", principal.UserID).
		WarnContext(ctx, "unimplemented surface invoked", "session_id", sessionID)
	return ErrNotImplemented
}

// Shutdown stops every running ticker. Sessions stay active in storage and
// resume on the next request that touches them.
func (s *SessionEngine) Shutdown() {
	s.mu.Lock()
	tickers := make([]*focus.Ticker, 0, len(s.active))
	for userID, us := range s.active {
		if us.ticker != nil {
			tickers = append(tickers, us.ticker)
		}
		delete(s.active, userID)
	}
	s.mu.Unlock()

	for _, ticker := range tickers {
		ticker.Stop()
	}
}

// workingSessionLocked returns the user's working session, rebuilding it
// from the persisted row when this process has none. Caller holds s.mu.
func (s *SessionEngine) workingSessionLocked(ctx context.Context, userID string) (*userSession, error) {
	if us := s.active[userID]; us != nil {
		return us, nil
	}

	row, err := s.sessions.GetActiveSession(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("no active session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}

	apps, err := s.sessions.ListSessionApps(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list session apps: %w", err)
	}
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.AppID)
	}
	return s.resumeLocked(userID, row, ids), nil
}

// viewLocked assembles the view for a session row. Caller holds s.mu.
func (s *SessionEngine) viewLocked(ctx context.Context, sessionID string, machine *focus.Machine) (FocusSessionView, error) {
	row, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("load session: %w", err)
	}
	apps, err := s.sessions.ListSessionApps(ctx, sessionID)
	if err != nil {
		return FocusSessionView{}, fmt.Errorf("list session apps: %w", err)
	}
	return FocusSessionView{Session: row, Apps: apps, MinutesSaved: machine.MinutesSaved()}, nil
}

func terminalState(status string) focus.State {
	if status == persistence.SessionStatusOverridden {
		return focus.StateOverridden
	}
	return focus.StateCompleted
}
