package focus

import (
	"errors"
	"sort"
	"time"
)

// State identifies a position in the focus-session lifecycle.
type State string

const (
	// StateEmpty is the rest state; no session is being prepared or running.
	StateEmpty State = "empty"
	// StateSelecting means the app picker is open.
	StateSelecting State = "selecting"
	// StateConfiguring means apps are chosen and the break budget is being set.
	StateConfiguring State = "configuring_breaks"
	// StateActive means the session is running and the countdown ticks.
	StateActive State = "active"
	// StateCompleted is the terminal state for a normally ended session.
	StateCompleted State = "completed"
	// StateOverridden is the terminal state for an early user termination.
	StateOverridden State = "overridden"
)

// Break budget bounds. Adjustments outside the bounds are ignored, not errors.
const (
	MinBreaks     = 0
	MaxBreaks     = 10
	DefaultBreaks = 3
)

var (
	// ErrInvalidTransition is returned when an operation is not legal in the
	// machine's current state.
	ErrInvalidTransition = errors.New("focus: invalid state transition")
	// ErrNoAppsSelected is returned when break configuration is entered
	// without any selected apps.
	ErrNoAppsSelected = errors.New("focus: no apps selected")
)

// Machine is the per-user focus-session state machine. It is pure working
// state: nothing is persisted until the owning service commits the Active
// transition. Machine is not safe for concurrent use; the owning service
// serializes access.
type Machine struct {
	state             State
	selected          map[string]struct{}
	breaksAllowed     int
	breaksUsed        int
	scheduledDuration int
	startedAt         time.Time
	elapsed           time.Duration
}

// NewMachine returns a machine in the Empty state.
func NewMachine() *Machine {
	return &Machine{
		state:         StateEmpty,
		selected:      make(map[string]struct{}),
		breaksAllowed: DefaultBreaks,
	}
}

// State reports the machine's current state.
func (m *Machine) State() State {
	return m.state
}

// OpenPicker moves Empty to Selecting. Reopening the picker while already
// selecting is a no-op.
func (m *Machine) OpenPicker() error {
	switch m.state {
	case StateEmpty:
		m.state = StateSelecting
		return nil
	case StateSelecting:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// SelectApps records the chosen app ids and moves Selecting to
// ConfiguringBreaks. The set must be non-empty; existence checks belong to
// the caller, which validates ids before invoking this transition.
func (m *Machine) SelectApps(appIDs []string) error {
	if m.state != StateSelecting {
		return ErrInvalidTransition
	}
	if len(appIDs) == 0 {
		return ErrNoAppsSelected
	}
	for _, id := range appIDs {
		m.selected[id] = struct{}{}
	}
	if len(m.selected) == 0 {
		return ErrNoAppsSelected
	}
	m.state = StateConfiguring
	return nil
}

// AdjustBreaks applies a ±1 adjustment to the break budget, clamped to
// [MinBreaks, MaxBreaks]. Adjustments at the bounds are silently ignored.
func (m *Machine) AdjustBreaks(delta int) {
	if m.state != StateConfiguring {
		return
	}
	next := m.breaksAllowed + delta
	if next < MinBreaks || next > MaxBreaks {
		return
	}
	m.breaksAllowed = next
}

// BreaksAllowed reports the configured break budget.
func (m *Machine) BreaksAllowed() int {
	return m.breaksAllowed
}

// BreaksUsed reports how many breaks have been consumed.
func (m *Machine) BreaksUsed() int {
	return m.breaksUsed
}

// Activate moves ConfiguringBreaks to Active, stamping the start time and
// scheduled duration (minutes).
func (m *Machine) Activate(scheduledDuration int, now time.Time) error {
	if m.state != StateConfiguring {
		return ErrInvalidTransition
	}
	m.state = StateActive
	m.scheduledDuration = scheduledDuration
	m.startedAt = now
	m.elapsed = 0
	m.breaksUsed = 0
	return nil
}

// Resume puts the machine straight into Active for an already-running
// session, preserving its original start time and break bookkeeping. Used
// when merging a request into an open session that the process has no
// working state for.
func (m *Machine) Resume(appIDs []string, scheduledDuration int, startedAt time.Time, breaksAllowed, breaksUsed int, now time.Time) {
	m.state = StateActive
	m.selected = make(map[string]struct{}, len(appIDs))
	for _, id := range appIDs {
		m.selected[id] = struct{}{}
	}
	m.scheduledDuration = scheduledDuration
	m.startedAt = startedAt
	m.elapsed = now.Sub(startedAt)
	if m.elapsed < 0 {
		m.elapsed = 0
	}
	if breaksAllowed < MinBreaks || breaksAllowed > MaxBreaks {
		breaksAllowed = DefaultBreaks
	}
	m.breaksAllowed = breaksAllowed
	m.breaksUsed = breaksUsed
}

// AddApps merges more app ids into a running session. Elapsed time is not
// reset; the new apps are credited from the session start like the rest.
func (m *Machine) AddApps(appIDs []string) error {
	if m.state != StateActive {
		return ErrInvalidTransition
	}
	for _, id := range appIDs {
		m.selected[id] = struct{}{}
	}
	return nil
}

// LockedApps returns the session's locked app ids in sorted order.
func (m *Machine) LockedApps() []string {
	ids := make([]string, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UseBreak consumes one break from the budget. Consumption beyond the
// allowance is a no-op; the returned flag reports whether a break was
// actually consumed.
func (m *Machine) UseBreak() bool {
	if m.state != StateActive {
		return false
	}
	if m.breaksUsed >= m.breaksAllowed {
		return false
	}
	m.breaksUsed++
	return true
}

// Tick advances elapsed time by one second and returns the recomputed
// minutes saved. Saved time is a pure function of elapsed time and is
// credited identically to every locked app.
func (m *Machine) Tick() int {
	if m.state != StateActive {
		return m.MinutesSaved()
	}
	m.elapsed += time.Second
	return m.MinutesSaved()
}

// MinutesSaved reports floor(elapsed seconds / 60).
func (m *Machine) MinutesSaved() int {
	return int(m.elapsed / time.Minute)
}

// Elapsed reports the tracked elapsed duration.
func (m *Machine) Elapsed() time.Duration {
	return m.elapsed
}

// StartedAt reports the Active start time.
func (m *Machine) StartedAt() time.Time {
	return m.startedAt
}

// ScheduledDuration reports the planned session length in minutes. Elapsing
// past it has no effect; the session keeps counting until ended.
func (m *Machine) ScheduledDuration() int {
	return m.scheduledDuration
}

// Finalize moves Active to the requested terminal state and returns the
// actual duration in whole minutes. The machine then resets to Empty; a
// finished session always returns the user to the rest state.
func (m *Machine) Finalize(terminal State, now time.Time) (int, error) {
	if m.state != StateActive {
		return 0, ErrInvalidTransition
	}
	if terminal != StateCompleted && terminal != StateOverridden {
		return 0, ErrInvalidTransition
	}

	elapsed := now.Sub(m.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	actual := int(elapsed / time.Minute)

	m.state = StateEmpty
	m.selected = make(map[string]struct{})
	m.breaksAllowed = DefaultBreaks
	m.breaksUsed = 0
	m.scheduledDuration = 0
	m.startedAt = time.Time{}
	m.elapsed = 0

	return actual, nil
}
