package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

type sessionRow struct {
	Token     string `db:"token"`
	UserID    string `db:"user_id"`
	ExpiresAt string `db:"expires_at"`
	CreatedAt string `db:"created_at"`
}

func (row sessionRow) toPersistence() (persistence.Session, error) {
	expires, err := parseTime(row.ExpiresAt)
	if err != nil {
		return persistence.Session{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Session{}, err
	}
	return persistence.Session{
		Token:     row.Token,
		UserID:    row.UserID,
		ExpiresAt: expires,
		CreatedAt: created,
	}, nil
}

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateSession stores a new session token for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if strings.TrimSpace(session.Token) == "" || session.UserID == "" || session.ExpiresAt.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			session.Token,
			session.UserID,
			formatTime(session.ExpiresAt),
			formatTime(session.CreatedAt),
		)
		return err
	})
}

// GetSession retrieves a session by its token value. Expiry is left to the caller.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var row sessionRow
	if err := r.helper.Get(ctx, &row, `SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?`, token); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// FindSessionByUser returns the user's session that lives longest past reference.
func (r *SessionRepository) FindSessionByUser(ctx context.Context, userID string, reference time.Time) (persistence.Session, error) {
	const query = `
		SELECT token, user_id, expires_at, created_at FROM sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY expires_at DESC
		LIMIT 1
	`
	var row sessionRow
	if err := r.helper.Get(ctx, &row, query, userID, formatTime(reference)); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return row.toPersistence()
}

// DeleteSession removes a session by token.
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	var deleted int
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		if err != nil {
			return err
		}
		deleted, err = rowsAffected(result)
		return err
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error) {
	var deleted int
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(reference))
		if err != nil {
			return err
		}
		deleted, err = rowsAffected(result)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
