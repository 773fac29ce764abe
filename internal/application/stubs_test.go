package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// Hand-written repository stubs shared by the service tests. Each stub
// keeps rows in maps and exposes error hooks so tests can inject failures
// at specific calls.

type streakCall struct {
	current int
	longest int
	date    string
}

type userRepoStub struct {
	users       map[string]persistence.User
	createErr   error
	streakCalls []streakCall
}

func newUserRepoStub(users ...persistence.User) *userRepoStub {
	stub := &userRepoStub{users: make(map[string]persistence.User)}
	for _, user := range users {
		stub.users[user.ID] = user
	}
	return stub
}

func (s *userRepoStub) CreateUser(_ context.Context, user persistence.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) GetUser(_ context.Context, id string) (persistence.User, error) {
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userRepoStub) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *userRepoStub) UpdateStreak(_ context.Context, userID string, current, longest int, lastActivityDate string) error {
	user, ok := s.users[userID]
	if !ok {
		return persistence.ErrNotFound
	}
	user.CurrentStreak = current
	user.LongestStreak = longest
	date := lastActivityDate
	user.LastActivityDate = &date
	s.users[userID] = user
	s.streakCalls = append(s.streakCalls, streakCall{current: current, longest: longest, date: lastActivityDate})
	return nil
}

type authSessionRepoStub struct {
	sessions    map[string]persistence.AuthSession
	createErr   error
	pruneCalls  []time.Time
	revokeCalls []string
}

func newAuthSessionRepoStub() *authSessionRepoStub {
	return &authSessionRepoStub{sessions: make(map[string]persistence.AuthSession)}
}

func (s *authSessionRepoStub) CreateAuthSession(_ context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if s.createErr != nil {
		return persistence.AuthSession{}, s.createErr
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *authSessionRepoStub) GetAuthSession(_ context.Context, token string) (persistence.AuthSession, error) {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *authSessionRepoStub) RevokeAuthSession(_ context.Context, token string, revokedAt time.Time) error {
	session, ok := s.sessions[token]
	if !ok {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	s.revokeCalls = append(s.revokeCalls, token)
	return nil
}

func (s *authSessionRepoStub) DeleteExpiredAuthSessions(_ context.Context, reference time.Time) error {
	s.pruneCalls = append(s.pruneCalls, reference)
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

type appRepoStub struct {
	apps       map[string]persistence.TrackedApp
	missingErr error
}

func newAppRepoStub(ids ...string) *appRepoStub {
	stub := &appRepoStub{apps: make(map[string]persistence.TrackedApp)}
	for _, id := range ids {
		stub.apps[id] = persistence.TrackedApp{ID: id, Name: id}
	}
	return stub
}

func (s *appRepoStub) CreateApp(_ context.Context, app persistence.TrackedApp) error {
	if _, ok := s.apps[app.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.apps[app.ID] = app
	return nil
}

func (s *appRepoStub) GetApp(_ context.Context, id string) (persistence.TrackedApp, error) {
	app, ok := s.apps[id]
	if !ok {
		return persistence.TrackedApp{}, persistence.ErrNotFound
	}
	return app, nil
}

func (s *appRepoStub) ListApps(_ context.Context) ([]persistence.TrackedApp, error) {
	out := make([]persistence.TrackedApp, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *appRepoStub) MissingAppIDs(_ context.Context, ids []string) ([]string, error) {
	if s.missingErr != nil {
		return nil, s.missingErr
	}
	missing := make([]string, 0)
	for _, id := range ids {
		if _, ok := s.apps[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type usageRepoStub struct {
	records  map[string]persistence.AppUsageRecord
	mergeErr error
}

func newUsageRepoStub() *usageRepoStub {
	return &usageRepoStub{records: make(map[string]persistence.AppUsageRecord)}
}

func usageKey(record persistence.AppUsageRecord) string {
	return fmt.Sprintf("%s|%s|%s", record.UserID, record.AppID, record.Date)
}

func (s *usageRepoStub) MergeUsage(_ context.Context, record persistence.AppUsageRecord) (persistence.AppUsageRecord, error) {
	if s.mergeErr != nil {
		return persistence.AppUsageRecord{}, s.mergeErr
	}
	key := usageKey(record)
	if existing, ok := s.records[key]; ok {
		existing.DurationMinutes += record.DurationMinutes
		existing.SessionsCount += record.SessionsCount
		existing.UpdatedAt = record.UpdatedAt
		s.records[key] = existing
		return existing, nil
	}
	s.records[key] = record
	return record, nil
}

func (s *usageRepoStub) ListUsage(_ context.Context, filter persistence.UsageFilter) ([]persistence.AppUsageRecord, error) {
	out := make([]persistence.AppUsageRecord, 0)
	for _, record := range s.records {
		if record.UserID != filter.UserID {
			continue
		}
		if filter.AppID != "" && record.AppID != filter.AppID {
			continue
		}
		if filter.Date != "" && record.Date != filter.Date {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type focusSessionRepoStub struct {
	sessions    map[string]persistence.FocusSession
	sessionApps map[string][]persistence.SessionApp
	createErr   error
	addAppsErr  error
	deleted     []string
}

func newFocusSessionRepoStub() *focusSessionRepoStub {
	return &focusSessionRepoStub{
		sessions:    make(map[string]persistence.FocusSession),
		sessionApps: make(map[string][]persistence.SessionApp),
	}
}

func (s *focusSessionRepoStub) CreateSession(_ context.Context, session persistence.FocusSession) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.sessions {
		if existing.UserID == session.UserID && existing.Status == persistence.SessionStatusActive {
			return persistence.ErrDuplicate
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *focusSessionRepoStub) GetSession(_ context.Context, id string) (persistence.FocusSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return persistence.FocusSession{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *focusSessionRepoStub) GetActiveSession(_ context.Context, userID string) (persistence.FocusSession, error) {
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == persistence.SessionStatusActive {
			return session, nil
		}
	}
	return persistence.FocusSession{}, persistence.ErrNotFound
}

func (s *focusSessionRepoStub) FinalizeSession(_ context.Context, id string, status string, endTime time.Time) error {
	session, ok := s.sessions[id]
	if !ok || session.Status != persistence.SessionStatusActive {
		return persistence.ErrNotFound
	}
	session.Status = status
	session.EndTime = &endTime
	s.sessions[id] = session
	return nil
}

func (s *focusSessionRepoStub) UpdateBreaksUsed(_ context.Context, id string, breaksUsed int) error {
	session, ok := s.sessions[id]
	if !ok {
		return persistence.ErrNotFound
	}
	session.BreaksUsed = breaksUsed
	s.sessions[id] = session
	return nil
}

func (s *focusSessionRepoStub) DeleteSession(_ context.Context, id string) error {
	if _, ok := s.sessions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.sessionApps, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *focusSessionRepoStub) AddSessionApps(_ context.Context, sessionID string, appIDs []string) error {
	if s.addAppsErr != nil {
		return s.addAppsErr
	}
	existing := make(map[string]bool, len(s.sessionApps[sessionID]))
	for _, app := range s.sessionApps[sessionID] {
		existing[app.AppID] = true
	}
	for _, id := range appIDs {
		if existing[id] {
			continue
		}
		s.sessionApps[sessionID] = append(s.sessionApps[sessionID], persistence.SessionApp{SessionID: sessionID, AppID: id})
		existing[id] = true
	}
	return nil
}

func (s *focusSessionRepoStub) ListSessionApps(_ context.Context, sessionID string) ([]persistence.SessionApp, error) {
	return append([]persistence.SessionApp(nil), s.sessionApps[sessionID]...), nil
}

func (s *focusSessionRepoStub) SetMinutesSaved(_ context.Context, sessionID string, minutes int) error {
	apps := s.sessionApps[sessionID]
	for i := range apps {
		apps[i].MinutesSaved = minutes
	}
	s.sessionApps[sessionID] = apps
	return nil
}

type circleRepoStub struct {
	circles        map[string]persistence.Circle
	members        map[string]map[string]persistence.CircleMember
	addMemberErr   error
	deletedCircles []string
	deletedMembers []string
}

func newCircleRepoStub() *circleRepoStub {
	return &circleRepoStub{
		circles: make(map[string]persistence.Circle),
		members: make(map[string]map[string]persistence.CircleMember),
	}
}

func (s *circleRepoStub) CreateCircle(_ context.Context, circle persistence.Circle) error {
	s.circles[circle.ID] = circle
	return nil
}

func (s *circleRepoStub) GetCircle(_ context.Context, id string) (persistence.Circle, error) {
	circle, ok := s.circles[id]
	if !ok {
		return persistence.Circle{}, persistence.ErrNotFound
	}
	return circle, nil
}

func (s *circleRepoStub) UpdateCircle(_ context.Context, circle persistence.Circle) error {
	if _, ok := s.circles[circle.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.circles[circle.ID] = circle
	return nil
}

func (s *circleRepoStub) DeleteCircle(_ context.Context, id string) error {
	if _, ok := s.circles[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.circles, id)
	s.deletedCircles = append(s.deletedCircles, id)
	return nil
}

func (s *circleRepoStub) AddMember(_ context.Context, member persistence.CircleMember) error {
	if s.addMemberErr != nil {
		return s.addMemberErr
	}
	if _, ok := s.members[member.CircleID][member.UserID]; ok {
		return persistence.ErrDuplicate
	}
	if s.members[member.CircleID] == nil {
		s.members[member.CircleID] = make(map[string]persistence.CircleMember)
	}
	s.members[member.CircleID][member.UserID] = member
	return nil
}

func (s *circleRepoStub) DeleteMembers(_ context.Context, circleID string) error {
	delete(s.members, circleID)
	s.deletedMembers = append(s.deletedMembers, circleID)
	return nil
}

func (s *circleRepoStub) IsMember(_ context.Context, circleID, userID string) (bool, error) {
	_, ok := s.members[circleID][userID]
	return ok, nil
}

func (s *circleRepoStub) ListMembers(_ context.Context, circleID string) ([]persistence.CircleMember, error) {
	out := make([]persistence.CircleMember, 0, len(s.members[circleID]))
	for _, member := range s.members[circleID] {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type friendRepoStub struct {
	edges     map[string]persistence.Friend
	createErr error
}

func newFriendRepoStub() *friendRepoStub {
	return &friendRepoStub{edges: make(map[string]persistence.Friend)}
}

func (s *friendRepoStub) CreateFriend(_ context.Context, friend persistence.Friend) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, edge := range s.edges {
		if edge.UserID == friend.UserID && edge.FriendID == friend.FriendID {
			return persistence.ErrDuplicate
		}
	}
	s.edges[friend.ID] = friend
	return nil
}

func (s *friendRepoStub) GetFriend(_ context.Context, id string) (persistence.Friend, error) {
	edge, ok := s.edges[id]
	if !ok {
		return persistence.Friend{}, persistence.ErrNotFound
	}
	return edge, nil
}

func (s *friendRepoStub) GetEdge(_ context.Context, userID, friendID string) (persistence.Friend, error) {
	for _, edge := range s.edges {
		if edge.UserID == userID && edge.FriendID == friendID {
			return edge, nil
		}
	}
	return persistence.Friend{}, persistence.ErrNotFound
}

func (s *friendRepoStub) UpdateFriendStatus(_ context.Context, id string, status string, updatedAt time.Time) error {
	edge, ok := s.edges[id]
	if !ok {
		return persistence.ErrNotFound
	}
	edge.Status = status
	edge.UpdatedAt = updatedAt
	s.edges[id] = edge
	return nil
}

func (s *friendRepoStub) ListFriends(_ context.Context, filter persistence.FriendFilter) ([]persistence.Friend, error) {
	out := make([]persistence.Friend, 0)
	for _, edge := range s.edges {
		switch filter.Direction {
		case "outgoing":
			if edge.UserID != filter.UserID {
				continue
			}
		case "incoming":
			if edge.FriendID != filter.UserID {
				continue
			}
		default:
			if edge.UserID != filter.UserID && edge.FriendID != filter.UserID {
				continue
			}
		}
		if filter.Status != "" && edge.Status != filter.Status {
			continue
		}
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type activityRepoStub struct {
	activities []persistence.Activity
	detached   []string
	createErr  error
}

func (s *activityRepoStub) CreateActivity(_ context.Context, activity persistence.Activity) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.activities = append(s.activities, activity)
	return nil
}

func (s *activityRepoStub) DetachCircle(_ context.Context, circleID string) error {
	s.detached = append(s.detached, circleID)
	for i := range s.activities {
		if s.activities[i].CircleID != nil && *s.activities[i].CircleID == circleID {
			s.activities[i].CircleID = nil
		}
	}
	return nil
}

func (s *activityRepoStub) ListActivities(_ context.Context, userID string) ([]persistence.Activity, error) {
	out := make([]persistence.Activity, 0)
	for _, activity := range s.activities {
		if activity.UserID == userID {
			out = append(out, activity)
		}
	}
	return out, nil
}

// sequenceIDs returns an id generator yielding the given values in order,
// then a fallback.
func sequenceIDs(ids ...string) func() string {
	return func() string {
		if len(ids) == 0 {
			return "fallback-id"
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
