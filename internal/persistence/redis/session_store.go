// Package redis keeps session tokens in Redis so that several API processes
// can share them.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/roombook/internal/persistence"
)

const defaultKeyPrefix = "roombook:session"

// SessionStore maps tokens to users and users back to their live token. Both
// keys carry the session TTL so Redis expires them together.
type SessionStore struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// Connect parses url, opens a client and verifies it answers PING.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*SessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewSessionStore(rdb, defaultKeyPrefix, logger), nil
}

// NewSessionStore wraps an existing client. Keys are namespaced by prefix.
func NewSessionStore(rdb *redis.Client, prefix string, logger *slog.Logger) *SessionStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *SessionStore) tokenKey(token string) string {
	return s.prefix + ":token:" + token
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// TokenForSubject returns the live token held by userID.
func (s *SessionStore) TokenForSubject(ctx context.Context, userID string) (string, error) {
	token, err := s.rdb.Get(ctx, s.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", persistence.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get subject token: %w", err)
	}

	// The reverse key may outlive a revoked token by a few milliseconds.
	owner, err := s.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if owner != userID {
		return "", persistence.ErrNotFound
	}
	return token, nil
}

// Issue binds token to userID for ttl.
func (s *SessionStore) Issue(ctx context.Context, userID, token string, ttl time.Duration) error {
	if token == "" || userID == "" || ttl <= 0 {
		return persistence.ErrConstraintViolation
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token), userID, ttl)
		pipe.Set(ctx, s.userKey(userID), token, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: issue session: %w", err)
	}
	s.logger.DebugContext(ctx, "session stored", "user_id", userID, "ttl", ttl)
	return nil
}

// Resolve returns the user bound to token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", persistence.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: resolve session: %w", err)
	}
	return userID, nil
}

// Revoke deletes token and, when it is still the user's current token, the
// reverse mapping.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	userID, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}

	keys := []string{s.tokenKey(token)}
	if current, err := s.rdb.Get(ctx, s.userKey(userID)).Result(); err == nil && current == token {
		keys = append(keys, s.userKey(userID))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: revoke session: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *SessionStore) Close() error {
	return s.rdb.Close()
}
