package persistence

import "time"

// User represents an account row, including the streak counters that the
// usage reconciler maintains.
type User struct {
	ID               string
	Email            string
	DisplayName      string
	PasswordHash     string
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AuthSession represents an issued bearer token persisted for a user.
type AuthSession struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// TrackedApp represents a catalog entry for an application that can be
// tracked or blocked. Catalog rows are immutable reference data.
type TrackedApp struct {
	ID       string
	Name     string
	Category string
}

// UserAppLink associates a user with a catalog app and carries the
// per-user tracking and blocking flags. Unique per (UserID, AppID).
type UserAppLink struct {
	ID        string
	UserID    string
	AppID     string
	IsTracked bool
	IsBlocked bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppSchedule represents a recurring blocking window configured by a user.
// DaysOfWeek holds weekday numbers 0 (Sunday) through 6 (Saturday).
// StartTime and EndTime are wall-clock values formatted as "15:04".
type AppSchedule struct {
	ID         string
	UserID     string
	AppID      string
	DaysOfWeek []int
	StartTime  string
	EndTime    string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Focus session status values. Active is the only non-terminal state
// persisted; completed and overridden are terminal.
const (
	SessionStatusActive     = "active"
	SessionStatusCompleted  = "completed"
	SessionStatusOverridden = "overridden"
)

// FocusSession represents one focus session row. EndTime is nil while the
// session is active.
type FocusSession struct {
	ID                string
	UserID            string
	StartTime         time.Time
	EndTime           *time.Time
	ScheduledDuration int
	BreaksAllowed     int
	BreaksUsed        int
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SessionApp is the join row between a focus session and a locked app.
type SessionApp struct {
	SessionID    string
	AppID        string
	MinutesSaved int
}

// AppUsageRecord is the per-(user, app, day) usage aggregate. Date is a
// civil date formatted as "2006-01-02".
type AppUsageRecord struct {
	UserID          string
	AppID           string
	Date            string
	DurationMinutes int
	SessionsCount   int
	UpdatedAt       time.Time
}

// UsageFilter narrows usage queries.
type UsageFilter struct {
	UserID    string
	AppID     string
	Date      string
	StartDate string
	EndDate   string
	Limit     int
}

// Circle represents a social circle row.
type Circle struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CircleMember is the membership row. Unique per (CircleID, UserID).
type CircleMember struct {
	CircleID string
	UserID   string
	JoinedAt time.Time
}

// Friend edge status values.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusBlocked  = "blocked"
)

// Friend represents a directed friendship edge. Unique per (UserID, FriendID).
type Friend struct {
	ID        string
	UserID    string
	FriendID  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FriendFilter narrows friend edge queries. Direction is "outgoing",
// "incoming", or empty for both.
type FriendFilter struct {
	UserID    string
	Status    string
	Direction string
}

// Activity represents an activity feed row. CircleID is nulled when the
// referenced circle is deleted.
type Activity struct {
	ID        string
	UserID    string
	CircleID  *string
	Kind      string
	CreatedAt time.Time
}
