package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/focusguard/internal/persistence"
)

const minPasswordLength = 8

// AccountService handles registration, login, logout, and token validation.
type AccountService struct {
	users       persistence.UserRepository
	sessions    persistence.AuthSessionRepository
	idGenerator func() string
	tokenSource func() string
	clock       func() time.Time
	sessionTTL  time.Duration
	logger      *slog.Logger
}

// NewAccountService creates an account service. idGenerator supplies row
// ids, tokenSource supplies bearer tokens.
func NewAccountService(
	users persistence.UserRepository,
	sessions persistence.AuthSessionRepository,
	idGenerator func() string,
	tokenSource func() string,
	clock func() time.Time,
	sessionTTL time.Duration,
	logger *slog.Logger,
) (*AccountService, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if sessions == nil {
		return nil, errors.New("auth session repository is required")
	}
	if idGenerator == nil {
		return nil, errors.New("id generator is required")
	}
	if tokenSource == nil {
		return nil, errors.New("token source is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if sessionTTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}

	return &AccountService{
		users:       users,
		sessions:    sessions,
		idGenerator: idGenerator,
		tokenSource: tokenSource,
		clock:       clock,
		sessionTTL:  sessionTTL,
		logger:      defaultLogger(logger),
	}, nil
}

// Register creates an account and returns it with a fresh auth session.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (persistence.User, persistence.AuthSession, error) {
	logger := serviceLogger(ctx, s.logger, "account", "register")

	email := strings.TrimSpace(strings.ToLower(params.Email))
	displayName := strings.TrimSpace(params.DisplayName)

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is not a valid address")
	}
	if displayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if len(params.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "registration rejected", "error_kind", ErrorKind(vErr))
		return persistence.User{}, persistence.AuthSession{}, vErr
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		logger.ErrorContext(ctx, "password hashing failed", "error", err)
		return persistence.User{}, persistence.AuthSession{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock()
	user := persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			logger.WarnContext(ctx, "registration rejected", "error_kind", ErrorKind(ErrAlreadyExists))
			return persistence.User{}, persistence.AuthSession{}, fmt.Errorf("email already registered: %w", ErrAlreadyExists)
		}
		logger.ErrorContext(ctx, "account creation failed", "error", err)
		return persistence.User{}, persistence.AuthSession{}, fmt.Errorf("create user: %w", err)
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "session issue failed after registration", "error", err, "user_id", user.ID)
		return persistence.User{}, persistence.AuthSession{}, err
	}

	logger.InfoContext(ctx, "account registered", "user_id", user.ID)
	return user, session, nil
}

// Login authenticates credentials and issues a new auth session.
func (s *AccountService) Login(ctx context.Context, params LoginParams) (persistence.User, persistence.AuthSession, error) {
	logger := serviceLogger(ctx, s.logger, "account", "login")

	email := strings.TrimSpace(strings.ToLower(params.Email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, persistence.ErrNotFound) {
		logger.WarnContext(ctx, "login rejected", "error_kind", ErrorKind(ErrInvalidCredentials))
		return persistence.User{}, persistence.AuthSession{}, ErrInvalidCredentials
	}
	if err != nil {
		logger.ErrorContext(ctx, "user lookup failed", "error", err)
		return persistence.User{}, persistence.AuthSession{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := verifyPassword(params.Password, user.PasswordHash)
	if err != nil {
		logger.ErrorContext(ctx, "password verification failed", "error", err, "user_id", user.ID)
		return persistence.User{}, persistence.AuthSession{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logger.WarnContext(ctx, "login rejected", "error_kind", ErrorKind(ErrInvalidCredentials), "user_id", user.ID)
		return persistence.User{}, persistence.AuthSession{}, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "session issue failed", "error", err, "user_id", user.ID)
		return persistence.User{}, persistence.AuthSession{}, err
	}

	logger.InfoContext(ctx, "login succeeded", "user_id", user.ID)
	return user, session, nil
}

// Logout revokes the presented token. Revoking an unknown token reports
// invalid credentials rather than leaking token existence.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	logger := serviceLogger(ctx, s.logger, "account", "logout")

	if token == "" {
		return ErrInvalidCredentials
	}
	err := s.sessions.RevokeAuthSession(ctx, token, s.clock())
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		logger.ErrorContext(ctx, "token revocation failed", "error", err)
		return fmt.Errorf("revoke session: %w", err)
	}

	logger.InfoContext(ctx, "logout succeeded")
	return nil
}

// ValidateToken resolves a bearer token to a principal, rejecting revoked
// and expired sessions. Expired rows are pruned opportunistically.
func (s *AccountService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrInvalidCredentials
	}

	session, err := s.sessions.GetAuthSession(ctx, token)
	if errors.Is(err, persistence.ErrNotFound) {
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, fmt.Errorf("lookup session: %w", err)
	}

	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}

	now := s.clock()
	if !session.ExpiresAt.After(now) {
		if pruneErr := s.sessions.DeleteExpiredAuthSessions(ctx, now); pruneErr != nil {
			serviceLogger(ctx, s.logger, "account", "validate_token").
				WarnContext(ctx, "expired session cleanup failed", "error", pruneErr)
		}
		return Principal{}, ErrSessionExpired
	}

	return Principal{UserID: session.UserID, Token: token}, nil
}

// GetProfile returns the account row for the principal.
func (s *AccountService) GetProfile(ctx context.Context, principal Principal) (persistence.User, error) {
	user, err := s.users.GetUser(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.User{}, ErrNotFound
	}
	if err != nil {
		return persistence.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *AccountService) issueSession(ctx context.Context, userID string) (persistence.AuthSession, error) {
	now := s.clock()
	session, err := s.sessions.CreateAuthSession(ctx, persistence.AuthSession{
		ID:        s.idGenerator(),
		UserID:    userID,
		Token:     s.tokenSource(),
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	})
	if err != nil {
		return persistence.AuthSession{}, fmt.Errorf("create auth session: %w", err)
	}
	return session, nil
}
