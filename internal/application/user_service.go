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

const maxLoginLength = 64

// PasswordHasher derives a storable hash from a plain text password.
type PasswordHasher func(password string) (string, error)

// UserLocation returns the canonical resource path of a user.
func UserLocation(id string) string {
	return "/users/" + id
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users    UserRepository
	meetings MeetingRepository
	sessions SessionStore
	hash     PasswordHasher
	now      func() time.Time
	logger   *slog.Logger
}

// NewUserService wires dependencies for the user service. meetings and
// sessions may be nil; when set they are cleaned up on account deletion.
func NewUserService(users UserRepository, meetings MeetingRepository, sessions SessionStore, hash PasswordHasher, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, meetings: meetings, sessions: sessions, hash: hash, now: now, logger: defaultLogger(logger)}
}

// RegisterUser validates input and persists a new account. Logins are unique.
func (s *UserService) RegisterUser(ctx context.Context, params RegisterUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	input := UserInput{
		Login:    strings.TrimSpace(params.Input.Login),
		Password: params.Input.Password,
		Name:     strings.TrimSpace(params.Input.Name),
	}
	if vErr := validateUserInput(input); vErr.HasErrors() {
		return User{}, vErr
	}

	if _, err := s.users.FindByKey(ctx, "login", input.Login); err == nil {
		return User{}, fmt.Errorf("login %q is taken: %w", input.Login, ErrAlreadyExists)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return User{}, err
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	creds := UserCredentials{
		User: User{
			Login:     input.Login,
			Name:      input.Name,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}

	id, err := s.users.Save(ctx, creds)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	creds.User.ID = id

	serviceLogger(ctx, s.logger, "UserService", "RegisterUser", "user_id", id).InfoContext(ctx, "user registered")
	return creds.User, nil
}

// GetUser returns the public attributes of an account.
func (s *UserService) GetUser(ctx context.Context, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	creds, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return creds.User, nil
}

// UpdateUser overlays the fields present in the patch onto the caller's own
// account. The login cannot change.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if params.Principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	if params.Principal.UserID != params.UserID {
		return User{}, ErrForbidden
	}

	existing, err := s.users.FindByID(ctx, params.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	vErr := &ValidationError{}
	updated := existing
	if params.Patch.Login != nil && strings.TrimSpace(*params.Patch.Login) != existing.User.Login {
		vErr.add("login", "login cannot be changed")
	}
	if params.Patch.Name != nil {
		name := strings.TrimSpace(*params.Patch.Name)
		if name == "" {
			vErr.add("name", "name must not be empty")
		}
		updated.User.Name = name
	}
	if params.Patch.Password != nil && *params.Patch.Password == "" {
		vErr.add("password", "password must not be empty")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	if params.Patch.Password != nil {
		hash, err := s.hash(*params.Patch.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		updated.PasswordHash = hash
	}
	updated.User.UpdatedAt = s.now().UTC()

	if _, err := s.users.Save(ctx, updated); err != nil {
		return User{}, mapUserRepoError(err)
	}

	return updated.User, nil
}

// DeleteUser removes the caller's own account together with its meetings and
// live session token.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	if principal.UserID != userID {
		return ErrForbidden
	}

	logger := serviceLogger(ctx, s.logger, "UserService", "DeleteUser", "user_id", userID)

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return mapUserRepoError(err)
	}

	if s.meetings != nil {
		deleted, err := s.meetings.DeleteMany(ctx, persistence.Filter{"user_id": userID})
		if err != nil {
			return mapMeetingRepoError(err)
		}
		logger.DebugContext(ctx, "user meetings removed", "deleted", deleted)
	}

	if s.sessions != nil {
		token, err := s.sessions.TokenForSubject(ctx, userID)
		switch {
		case err == nil:
			if err := s.sessions.Revoke(ctx, token); err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return err
			}
		case !errors.Is(err, persistence.ErrNotFound):
			return err
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return mapUserRepoError(err)
	}

	logger.InfoContext(ctx, "user deleted")
	return nil
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	switch {
	case input.Login == "":
		vErr.add("login", "login is required")
	case len(input.Login) > maxLoginLength:
		vErr.add("login", fmt.Sprintf("login must be at most %d characters", maxLoginLength))
	case strings.ContainsAny(input.Login, " \t\r\n/"):
		vErr.add("login", "login must not contain whitespace or slashes")
	}
	if input.Password == "" {
		vErr.add("password", "password is required")
	}
	if input.Name == "" {
		vErr.add("name", "name is required")
	}

	return vErr
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("login", "login is invalid")
		return vErr
	}
	return err
}
