package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

// AppCatalogService exposes the tracked-app catalog and the per-user app
// links carrying tracking and blocking flags.
type AppCatalogService struct {
	apps        persistence.AppRepository
	links       persistence.UserAppRepository
	integrity   *IntegrityChecker
	idGenerator func() string
	clock       func() time.Time
	logger      *slog.Logger
}

// NewAppCatalogService creates an app catalog service.
func NewAppCatalogService(
	apps persistence.AppRepository,
	links persistence.UserAppRepository,
	integrity *IntegrityChecker,
	idGenerator func() string,
	clock func() time.Time,
	logger *slog.Logger,
) (*AppCatalogService, error) {
	if apps == nil {
		return nil, errors.New("app repository is required")
	}
	if links == nil {
		return nil, errors.New("user app repository is required")
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

	return &AppCatalogService{
		apps:        apps,
		links:       links,
		integrity:   integrity,
		idGenerator: idGenerator,
		clock:       clock,
		logger:      defaultLogger(logger),
	}, nil
}

// ListApps returns the full catalog.
func (s *AppCatalogService) ListApps(ctx context.Context) ([]persistence.TrackedApp, error) {
	apps, err := s.apps.ListApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return apps, nil
}

// LinkApp associates a catalog app with the principal. Each (user, app)
// pair links at most once.
func (s *AppCatalogService) LinkApp(ctx context.Context, principal Principal, params LinkAppParams) (persistence.UserAppLink, error) {
	logger := serviceLogger(ctx, s.logger, "apps", "link", "user_id", principal.UserID)

	if params.AppID == "" {
		vErr := &ValidationError{}
		vErr.add("app_id", "app id is required")
		return persistence.UserAppLink{}, vErr
	}

	if err := s.integrity.VerifyAppExists(ctx, params.AppID); err != nil {
		return persistence.UserAppLink{}, err
	}

	isTracked := true
	if params.IsTracked != nil {
		isTracked = *params.IsTracked
	}
	isBlocked := false
	if params.IsBlocked != nil {
		isBlocked = *params.IsBlocked
	}

	now := s.clock()
	link := persistence.UserAppLink{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		AppID:     params.AppID,
		IsTracked: isTracked,
		IsBlocked: isBlocked,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.links.CreateLink(ctx, link); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return persistence.UserAppLink{}, fmt.Errorf("app already linked: %w", ErrAlreadyExists)
		}
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			return persistence.UserAppLink{}, fmt.Errorf("link references missing row: %w", ErrNotFound)
		}
		logger.ErrorContext(ctx, "link creation failed", "error", err, "app_id", params.AppID)
		return persistence.UserAppLink{}, fmt.Errorf("create link: %w", err)
	}

	logger.InfoContext(ctx, "app linked", "link_id", link.ID, "app_id", link.AppID)
	return link, nil
}

// UpdateLink applies a partial flags update to a link the principal owns.
func (s *AppCatalogService) UpdateLink(ctx context.Context, principal Principal, params UpdateLinkParams) (persistence.UserAppLink, error) {
	logger := serviceLogger(ctx, s.logger, "apps", "update_link", "user_id", principal.UserID)

	link, err := s.links.GetLink(ctx, params.LinkID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.UserAppLink{}, ErrNotFound
	}
	if err != nil {
		return persistence.UserAppLink{}, fmt.Errorf("get link: %w", err)
	}
	if err := s.integrity.VerifyOwnership(ctx, principal.UserID, link.UserID); err != nil {
		return persistence.UserAppLink{}, err
	}

	if params.IsTracked != nil {
		link.IsTracked = *params.IsTracked
	}
	if params.IsBlocked != nil {
		link.IsBlocked = *params.IsBlocked
	}
	link.UpdatedAt = s.clock()

	if err := s.links.UpdateLink(ctx, link); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.UserAppLink{}, ErrNotFound
		}
		logger.ErrorContext(ctx, "link update failed", "error", err, "link_id", params.LinkID)
		return persistence.UserAppLink{}, fmt.Errorf("update link: %w", err)
	}

	logger.InfoContext(ctx, "link updated", "link_id", link.ID)
	return link, nil
}

// ListLinks returns the principal's app links.
func (s *AppCatalogService) ListLinks(ctx context.Context, principal Principal) ([]persistence.UserAppLink, error) {
	links, err := s.links.ListLinks(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}
