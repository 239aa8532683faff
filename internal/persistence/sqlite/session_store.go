package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// SessionStore adapts SessionRepository to the token store used by the auth
// service when no Redis server is configured. Expired rows are pruned lazily
// on every issue.
type SessionStore struct {
	sessions *SessionRepository
	now      func() time.Time
}

// NewSessionStore wraps sessions with the provided clock.
func NewSessionStore(sessions *SessionRepository, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{sessions: sessions, now: now}
}

// TokenForSubject returns the live token held by userID.
func (s *SessionStore) TokenForSubject(ctx context.Context, userID string) (string, error) {
	session, err := s.sessions.FindSessionByUser(ctx, userID, s.now().UTC())
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

// Issue stores token for userID until ttl elapses.
func (s *SessionStore) Issue(ctx context.Context, userID, token string, ttl time.Duration) error {
	now := s.now().UTC()
	if _, err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return err
	}
	return s.sessions.CreateSession(ctx, persistence.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
}

// Resolve returns the user bound to a live token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return "", err
	}
	if !session.ExpiresAt.After(s.now().UTC()) {
		if derr := s.sessions.DeleteSession(ctx, token); derr != nil && !errors.Is(derr, persistence.ErrNotFound) {
			return "", derr
		}
		return "", persistence.ErrNotFound
	}
	return session.UserID, nil
}

// Revoke removes token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}
