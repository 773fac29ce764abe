package persistence

import (
	"context"
	"time"
)

// UserRepository exposes account and streak operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateStreak(ctx context.Context, userID string, current, longest int, lastActivityDate string) error
}

// AuthSessionRepository stores issued bearer tokens.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, token string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}

// AppRepository exposes read access to the tracked-app catalog.
type AppRepository interface {
	CreateApp(ctx context.Context, app TrackedApp) error
	GetApp(ctx context.Context, id string) (TrackedApp, error)
	ListApps(ctx context.Context) ([]TrackedApp, error)
	MissingAppIDs(ctx context.Context, ids []string) ([]string, error)
}

// UserAppRepository stores per-user app links and their flags.
type UserAppRepository interface {
	CreateLink(ctx context.Context, link UserAppLink) error
	GetLink(ctx context.Context, id string) (UserAppLink, error)
	UpdateLink(ctx context.Context, link UserAppLink) error
	ListLinks(ctx context.Context, userID string) ([]UserAppLink, error)
}

// AppScheduleRepository stores recurring blocking windows.
type AppScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule AppSchedule) error
	GetSchedule(ctx context.Context, id string) (AppSchedule, error)
	UpdateSchedule(ctx context.Context, schedule AppSchedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, userID string) ([]AppSchedule, error)
}

// FocusSessionRepository stores focus sessions and their locked-app join
// rows. CreateSession is conditional: it fails with ErrDuplicate when the
// user already has an active session, making the at-most-one-active
// invariant durable rather than in-memory only.
type FocusSessionRepository interface {
	CreateSession(ctx context.Context, session FocusSession) error
	GetSession(ctx context.Context, id string) (FocusSession, error)
	GetActiveSession(ctx context.Context, userID string) (FocusSession, error)
	FinalizeSession(ctx context.Context, id string, status string, endTime time.Time) error
	UpdateBreaksUsed(ctx context.Context, id string, breaksUsed int) error
	DeleteSession(ctx context.Context, id string) error
	AddSessionApps(ctx context.Context, sessionID string, appIDs []string) error
	ListSessionApps(ctx context.Context, sessionID string) ([]SessionApp, error)
	SetMinutesSaved(ctx context.Context, sessionID string, minutes int) error
}

// UsageRepository stores per-day usage aggregates. MergeUsage performs an
// additive upsert at the storage layer so concurrent writers for the same
// key cannot lose updates.
type UsageRepository interface {
	MergeUsage(ctx context.Context, record AppUsageRecord) (AppUsageRecord, error)
	ListUsage(ctx context.Context, filter UsageFilter) ([]AppUsageRecord, error)
}

// CircleRepository stores circles and memberships.
type CircleRepository interface {
	CreateCircle(ctx context.Context, circle Circle) error
	GetCircle(ctx context.Context, id string) (Circle, error)
	UpdateCircle(ctx context.Context, circle Circle) error
	DeleteCircle(ctx context.Context, id string) error
	AddMember(ctx context.Context, member CircleMember) error
	DeleteMembers(ctx context.Context, circleID string) error
	IsMember(ctx context.Context, circleID, userID string) (bool, error)
	ListMembers(ctx context.Context, circleID string) ([]CircleMember, error)
}

// FriendRepository stores directed friendship edges.
type FriendRepository interface {
	CreateFriend(ctx context.Context, friend Friend) error
	GetFriend(ctx context.Context, id string) (Friend, error)
	GetEdge(ctx context.Context, userID, friendID string) (Friend, error)
	UpdateFriendStatus(ctx context.Context, id string, status string, updatedAt time.Time) error
	ListFriends(ctx context.Context, filter FriendFilter) ([]Friend, error)
}

// ActivityRepository stores activity feed rows.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	DetachCircle(ctx context.Context, circleID string) error
	ListActivities(ctx context.Context, userID string) ([]Activity, error)
}
