package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// RelationshipCoordinator manages circles, memberships, and friendship
// edges.
type RelationshipCoordinator struct {
	circles     persistence.CircleRepository
	friends     persistence.FriendRepository
	activities  persistence.ActivityRepository
	integrity   *IntegrityChecker
	idGenerator func() string
	clock       func() time.Time
	logger      *slog.Logger
}

// NewRelationshipCoordinator creates a relationship coordinator.
func NewRelationshipCoordinator(
	circles persistence.CircleRepository,
	friends persistence.FriendRepository,
	activities persistence.ActivityRepository,
	integrity *IntegrityChecker,
	idGenerator func() string,
	clock func() time.Time,
	logger *slog.Logger,
) (*RelationshipCoordinator, error) {
	if circles == nil {
		return nil, errors.New("circle repository is required")
	}
	if friends == nil {
		return nil, errors.New("friend repository is required")
	}
	if activities == nil {
		return nil, errors.New("activity repository is required")
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

	return &RelationshipCoordinator{
		circles:     circles,
		friends:     friends,
		activities:  activities,
		integrity:   integrity,
		idGenerator: idGenerator,
		clock:       clock,
		logger:      defaultLogger(logger),
	}, nil
}

// CreateCircle creates a circle with the principal as creator and first
// member. The two writes are paired: a failed membership insert removes
// the circle row so no memberless circle survives.
func (s *RelationshipCoordinator) CreateCircle(ctx context.Context, principal Principal, params CircleParams) (persistence.Circle, error) {
	logger := serviceLogger(ctx, s.logger, "social", "create_circle", "user_id", principal.UserID)

	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "circle name is required")
		return persistence.Circle{}, vErr
	}

	now := s.clock()
	circle := persistence.Circle{
		ID:        s.idGenerator(),
		Name:      name,
		CreatedBy: principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := createWithCompensation(ctx, logger,
		func() error { return s.circles.CreateCircle(ctx, circle) },
		func() error {
			return s.circles.AddMember(ctx, persistence.CircleMember{
				CircleID: circle.ID,
				UserID:   principal.UserID,
				JoinedAt: now,
			})
		},
		func() error { return s.circles.DeleteCircle(ctx, circle.ID) },
	)
	if err != nil {
		logger.ErrorContext(ctx, "circle creation failed", "error", err)
		return persistence.Circle{}, fmt.Errorf("create circle: %w", err)
	}

	logger.InfoContext(ctx, "circle created", "circle_id", circle.ID)
	return circle, nil
}

// GetCircle returns a circle and its members. Only members may read it.
func (s *RelationshipCoordinator) GetCircle(ctx context.Context, principal Principal, circleID string) (persistence.Circle, []persistence.CircleMember, error) {
	circle, err := s.circles.GetCircle(ctx, circleID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Circle{}, nil, ErrNotFound
	}
	if err != nil {
		return persistence.Circle{}, nil, fmt.Errorf("get circle: %w", err)
	}

	if err := s.integrity.VerifyMembership(ctx, circleID, principal.UserID); err != nil {
		return persistence.Circle{}, nil, err
	}

	members, err := s.circles.ListMembers(ctx, circleID)
	if err != nil {
		return persistence.Circle{}, nil, fmt.Errorf("list members: %w", err)
	}
	return circle, members, nil
}

// UpdateCircle renames a circle. Only the creator may rename it.
func (s *RelationshipCoordinator) UpdateCircle(ctx context.Context, principal Principal, circleID string, params CircleParams) (persistence.Circle, error) {
	logger := serviceLogger(ctx, s.logger, "social", "update_circle", "user_id", principal.UserID)

	circle, err := s.ownedCircle(ctx, principal, circleID)
	if err != nil {
		return persistence.Circle{}, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "circle name is required")
		return persistence.Circle{}, vErr
	}

	circle.Name = name
	circle.UpdatedAt = s.clock()
	if err := s.circles.UpdateCircle(ctx, circle); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Circle{}, ErrNotFound
		}
		logger.ErrorContext(ctx, "circle update failed", "error", err, "circle_id", circleID)
		return persistence.Circle{}, fmt.Errorf("update circle: %w", err)
	}

	logger.InfoContext(ctx, "circle updated", "circle_id", circleID)
	return circle, nil
}

// DeleteCircle removes a circle the principal created. Dependent rows go
// first: activity references are nulled, memberships are deleted, then
// the circle row itself. The order matters; reversing it would strand
// rows pointing at a missing circle.
func (s *RelationshipCoordinator) DeleteCircle(ctx context.Context, principal Principal, circleID string) error {
	logger := serviceLogger(ctx, s.logger, "social", "delete_circle", "user_id", principal.UserID)

	if _, err := s.ownedCircle(ctx, principal, circleID); err != nil {
		return err
	}

	if err := s.activities.DetachCircle(ctx, circleID); err != nil {
		logger.ErrorContext(ctx, "activity detach failed", "error", err, "circle_id", circleID)
		return fmt.Errorf("detach activities: %w", err)
	}
	if err := s.circles.DeleteMembers(ctx, circleID); err != nil {
		logger.ErrorContext(ctx, "membership deletion failed", "error", err, "circle_id", circleID)
		return fmt.Errorf("delete members: %w", err)
	}
	if err := s.circles.DeleteCircle(ctx, circleID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		logger.ErrorContext(ctx, "circle deletion failed", "error", err, "circle_id", circleID)
		return fmt.Errorf("delete circle: %w", err)
	}

	logger.InfoContext(ctx, "circle deleted", "circle_id", circleID)
	return nil
}

// JoinCircle adds the principal to a circle.
func (s *RelationshipCoordinator) JoinCircle(ctx context.Context, principal Principal, circleID string) error {
	logger := serviceLogger(ctx, s.logger, "social", "join_circle", "user_id", principal.UserID)

	if _, err := s.circles.GetCircle(ctx, circleID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get circle: %w", err)
	}

	err := s.circles.AddMember(ctx, persistence.CircleMember{
		CircleID: circleID,
		UserID:   principal.UserID,
		JoinedAt: s.clock(),
	})
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("already a member: %w", ErrAlreadyExists)
	}
	if err != nil {
		logger.ErrorContext(ctx, "membership insert failed", "error", err, "circle_id", circleID)
		return fmt.Errorf("add member: %w", err)
	}

	logger.InfoContext(ctx, "circle joined", "circle_id", circleID)
	return nil
}

// RequestFriend creates a pending friendship edge from the principal to
// the target user. Self-requests are rejected before any lookup. An
// existing edge in either direction decides the outcome: blocked edges
// reject, accepted edges report already-friends, pending edges report a
// duplicate request.
func (s *RelationshipCoordinator) RequestFriend(ctx context.Context, principal Principal, friendID string) (persistence.Friend, error) {
	logger := serviceLogger(ctx, s.logger, "social", "request_friend", "user_id", principal.UserID)

	if friendID == "" {
		vErr := &ValidationError{}
		vErr.add("friend_id", "friend id is required")
		return persistence.Friend{}, vErr
	}
	if friendID == principal.UserID {
		vErr := &ValidationError{}
		vErr.add("friend_id", "cannot send a friend request to yourself")
		logger.WarnContext(ctx, "self friend request rejected")
		return persistence.Friend{}, vErr
	}

	if err := s.integrity.VerifyUserExists(ctx, friendID); err != nil {
		return persistence.Friend{}, err
	}

	if existing, err := s.existingEdge(ctx, principal.UserID, friendID); err != nil {
		return persistence.Friend{}, err
	} else if existing != nil {
		switch existing.Status {
		case persistence.FriendStatusBlocked:
			return persistence.Friend{}, ErrBlocked
		case persistence.FriendStatusAccepted:
			return persistence.Friend{}, ErrAlreadyFriends
		default:
			return persistence.Friend{}, ErrDuplicateRequest
		}
	}

	now := s.clock()
	friend := persistence.Friend{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		FriendID:  friendID,
		Status:    persistence.FriendStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.friends.CreateFriend(ctx, friend); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			// A concurrent request won the race.
			return persistence.Friend{}, ErrDuplicateRequest
		}
		logger.ErrorContext(ctx, "friend request failed", "error", err, "friend_id", friendID)
		return persistence.Friend{}, fmt.Errorf("create friend request: %w", err)
	}

	logger.InfoContext(ctx, "friend request sent", "friend_id", friendID, "edge_id", friend.ID)
	return friend, nil
}

// RespondFriend moves a pending edge pointed at the principal to accepted
// or blocked. Only the recipient of a request may respond to it.
func (s *RelationshipCoordinator) RespondFriend(ctx context.Context, principal Principal, edgeID, status string) (persistence.Friend, error) {
	logger := serviceLogger(ctx, s.logger, "social", "respond_friend", "user_id", principal.UserID)

	if status != persistence.FriendStatusAccepted && status != persistence.FriendStatusBlocked {
		vErr := &ValidationError{}
		vErr.add("status", "status must be accepted or blocked")
		return persistence.Friend{}, vErr
	}

	edge, err := s.friends.GetFriend(ctx, edgeID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Friend{}, ErrNotFound
	}
	if err != nil {
		return persistence.Friend{}, fmt.Errorf("get friend edge: %w", err)
	}
	if err := s.integrity.VerifyOwnership(ctx, principal.UserID, edge.FriendID); err != nil {
		return persistence.Friend{}, err
	}
	if edge.Status != persistence.FriendStatusPending {
		if edge.Status == persistence.FriendStatusAccepted {
			return persistence.Friend{}, ErrAlreadyFriends
		}
		return persistence.Friend{}, ErrBlocked
	}

	now := s.clock()
	if err := s.friends.UpdateFriendStatus(ctx, edgeID, status, now); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Friend{}, ErrNotFound
		}
		logger.ErrorContext(ctx, "friend status update failed", "error", err, "edge_id", edgeID)
		return persistence.Friend{}, fmt.Errorf("update friend status: %w", err)
	}

	edge.Status = status
	edge.UpdatedAt = now
	logger.InfoContext(ctx, "friend request resolved", "edge_id", edgeID, "status", status)
	return edge, nil
}

// ListFriends returns the principal's friendship edges matching the
// filter.
func (s *RelationshipCoordinator) ListFriends(ctx context.Context, principal Principal, status, direction string) ([]persistence.Friend, error) {
	switch direction {
	case "", "outgoing", "incoming":
	default:
		vErr := &ValidationError{}
		vErr.add("direction", "direction must be outgoing or incoming")
		return nil, vErr
	}

	friends, err := s.friends.ListFriends(ctx, persistence.FriendFilter{
		UserID:    principal.UserID,
		Status:    status,
		Direction: direction,
	})
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// ListActivities returns the principal's activity feed.
func (s *RelationshipCoordinator) ListActivities(ctx context.Context, principal Principal) ([]persistence.Activity, error) {
	activities, err := s.activities.ListActivities(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

func (s *RelationshipCoordinator) ownedCircle(ctx context.Context, principal Principal, circleID string) (persistence.Circle, error) {
	circle, err := s.circles.GetCircle(ctx, circleID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Circle{}, ErrNotFound
	}
	if err != nil {
		return persistence.Circle{}, fmt.Errorf("get circle: %w", err)
	}
	if err := s.integrity.VerifyOwnership(ctx, principal.UserID, circle.CreatedBy); err != nil {
		return persistence.Circle{}, err
	}
	return circle, nil
}

// existingEdge returns the edge between the two users in either
// direction, or nil when none exists.
func (s *RelationshipCoordinator) existingEdge(ctx context.Context, userID, friendID string) (*persistence.Friend, error) {
	edge, err := s.friends.GetEdge(ctx, userID, friendID)
	if err == nil {
		return &edge, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("lookup friend edge: %w", err)
	}

	edge, err = s.friends.GetEdge(ctx, friendID, userID)
	if err == nil {
		return &edge, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("lookup friend edge: %w", err)
	}
	return nil, nil
}
