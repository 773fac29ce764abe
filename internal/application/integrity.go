package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/focusguard/internal/persistence"
)

// IntegrityChecker verifies referential integrity before multi-row writes.
// Checks are fail-closed: a storage error during verification rejects the
// write rather than letting an unverified reference through.
type IntegrityChecker struct {
	users   persistence.UserRepository
	apps    persistence.AppRepository
	circles persistence.CircleRepository
	logger  *slog.Logger
}

// NewIntegrityChecker creates an integrity checker over the given
// repositories.
func NewIntegrityChecker(users persistence.UserRepository, apps persistence.AppRepository, circles persistence.CircleRepository, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{
		users:   users,
		apps:    apps,
		circles: circles,
		logger:  defaultLogger(logger),
	}
}

// VerifyUserExists confirms the user id references an existing account.
func (c *IntegrityChecker) VerifyUserExists(ctx context.Context, userID string) error {
	if c == nil || c.users == nil {
		return errors.New("integrity checker not configured")
	}
	_, err := c.users.GetUser(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		serviceLogger(ctx, c.logger, "integrity", "verify_user", "user_id", userID).
			WarnContext(ctx, "referenced user does not exist")
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	return nil
}

// VerifyAppsExist confirms every app id references a catalog entry. Missing
// ids reject the whole set.
func (c *IntegrityChecker) VerifyAppsExist(ctx context.Context, appIDs []string) error {
	if c == nil || c.apps == nil {
		return errors.New("integrity checker not configured")
	}
	if len(appIDs) == 0 {
		return nil
	}
	missing, err := c.apps.MissingAppIDs(ctx, appIDs)
	if err != nil {
		return fmt.Errorf("verify apps: %w", err)
	}
	if len(missing) > 0 {
		serviceLogger(ctx, c.logger, "integrity", "verify_apps", "missing", missing).
			WarnContext(ctx, "referenced apps do not exist")
		return fmt.Errorf("apps %v: %w", missing, ErrNotFound)
	}
	return nil
}

// VerifyAppExists confirms a single app id references a catalog entry.
func (c *IntegrityChecker) VerifyAppExists(ctx context.Context, appID string) error {
	return c.VerifyAppsExist(ctx, []string{appID})
}

// VerifyOwnership confirms the acting user owns the resource.
func (c *IntegrityChecker) VerifyOwnership(ctx context.Context, userID, ownerID string) error {
	if userID == "" || userID != ownerID {
		serviceLogger(ctx, c.logger, "integrity", "verify_ownership", "user_id", userID, "owner_id", ownerID).
			WarnContext(ctx, "user does not own the resource")
		return ErrUnauthorized
	}
	return nil
}

// VerifyMembership confirms the user belongs to the circle.
func (c *IntegrityChecker) VerifyMembership(ctx context.Context, circleID, userID string) error {
	if c == nil || c.circles == nil {
		return errors.New("integrity checker not configured")
	}
	member, err := c.circles.IsMember(ctx, circleID, userID)
	if err != nil {
		return fmt.Errorf("verify membership: %w", err)
	}
	if !member {
		serviceLogger(ctx, c.logger, "integrity", "verify_membership", "circle_id", circleID, "user_id", userID).
			WarnContext(ctx, "user is not a circle member")
		return ErrUnauthorized
	}
	return nil
}
