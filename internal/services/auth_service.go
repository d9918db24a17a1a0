package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fusionbi/internal/auth"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/store"
	"fusionbi/pkg/contracts/domain"
)

// UserStore is the part of the portal repository the auth service needs.
type UserStore interface {
	UserByLogin(ctx context.Context, login string) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(u *domain.User) (string, error)
}

// LoginResult is a successful sign-in.
type LoginResult struct {
	User  *domain.User
	Token string
}

// AuthService signs users in against ADM.Users.
type AuthService struct {
	users   UserStore
	tokens  TokenIssuer
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthService creates the service. metrics may be nil.
func NewAuthService(users UserStore, tokens TokenIssuer, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		metrics: metrics,
		logger:  infrastructure.WithComponent(logger, "auth_service"),
		now:     time.Now,
	}
}

// Login checks the credentials and issues a session token. The account
// state is checked before the password, so an inactive account is reported
// as such even with a wrong password.
func (s *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		s.metrics.RecordLogin(ctx, "missing_credentials")
		return nil, ErrMissingCredentials
	}

	user, err := s.users.UserByLogin(ctx, login)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		s.metrics.RecordLogin(ctx, "unknown_user")
		s.logger.InfoContext(ctx, "login rejected", slog.String("reason", "unknown_user"))
		return nil, ErrInvalidCredentials
	case err != nil:
		s.metrics.RecordLogin(ctx, "unavailable")
		s.logger.ErrorContext(ctx, "user lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrLoginUnavailable, err)
	}

	if !user.IsActive {
		s.metrics.RecordLogin(ctx, "inactive")
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("reason", "inactive"),
			slog.Int64("user_id", user.ID))
		return nil, ErrAccountInactive
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.metrics.RecordLogin(ctx, "bad_password")
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("reason", "bad_password"),
			slog.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()))
	} else {
		user.LastLogin = &now
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.metrics.RecordLogin(ctx, "")
	s.logger.InfoContext(ctx, "user signed in",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username))

	return &LoginResult{User: user, Token: token}, nil
}

// CurrentUser reloads the user named by a session. Deleted or deactivated
// accounts invalidate the session.
func (s *AuthService) CurrentUser(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	if claims == nil {
		return nil, ErrSessionInvalid
	}
	user, err := s.users.UserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginUnavailable, err)
	}
	if !user.IsActive {
		return nil, ErrSessionInvalid
	}
	return user, nil
}
