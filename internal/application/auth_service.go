package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// DefaultSessionTTL bounds the lifetime of an issued token.
const DefaultSessionTTL = time.Hour

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService verifies credentials and manages opaque session tokens.
type AuthService struct {
	users          UserRepository
	sessions       SessionStore
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserRepository, sessions SessionStore, verify PasswordVerifier, tokenGenerator func() string, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(users, sessions, verify, tokenGenerator, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionStore, verify PasswordVerifier, tokenGenerator func() string, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = NewSessionToken
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		users:          users,
		sessions:       sessions,
		verifyPassword: verify,
		tokenGenerator: tokenGenerator,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate verifies a login and password and returns the user's session
// token. A token that is still live is handed out again; otherwise a new one
// is issued.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil || s.sessions == nil {
		err = fmt.Errorf("auth dependencies not configured")
		return
	}

	login := strings.TrimSpace(params.Login)
	logger := s.loggerWith(ctx, "Authenticate", "login", login)
	defer func() {
		logOutcome(ctx, logger, err, "authentication failed", "authentication succeeded",
			"user_id", result.User.ID, "reused", result.Reused)
	}()

	vErr := &ValidationError{}
	if login == "" {
		vErr.add("login", "login is required")
	}
	if params.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.users.FindByKey(ctx, "login", login)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	if verr := s.verifyPassword(creds.PasswordHash, params.Password); verr != nil {
		err = ErrInvalidCredentials
		return
	}

	var token string
	token, err = s.sessions.TokenForSubject(ctx, creds.User.ID)
	switch {
	case err == nil:
		result = AuthenticateResult{User: creds.User, Token: token, ExpiresIn: s.sessionTTL, Reused: true}
		return
	case !errors.Is(err, persistence.ErrNotFound):
		return
	}

	token = s.tokenGenerator()
	if token == "" {
		err = fmt.Errorf("failed to generate session token")
		return
	}
	if err = s.sessions.Issue(ctx, creds.User.ID, token, s.sessionTTL); err != nil {
		return
	}

	result = AuthenticateResult{User: creds.User, Token: token, ExpiresIn: s.sessionTTL}
	return
}

// ValidateToken resolves a bearer token to the principal it was issued to.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil || s.sessions == nil {
		err = fmt.Errorf("auth dependencies not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var userID string
	userID, err = s.sessions.Resolve(ctx, trimmed)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	var creds UserCredentials
	creds, err = s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	principal = Principal{UserID: creds.User.ID, Login: creds.User.Login}
	return
}

// RevokeToken invalidates a session token.
func (s *AuthService) RevokeToken(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session store not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "RevokeToken")

	if err := s.sessions.Revoke(ctx, trimmed); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			logger.InfoContext(ctx, "failed to revoke session", "error_kind", ErrorKind(ErrUnauthorized))
			return ErrUnauthorized
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}
