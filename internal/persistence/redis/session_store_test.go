package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/example/roombook/internal/persistence"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()

	url := os.Getenv("ROOMBOOK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ROOMBOOK_TEST_REDIS_URL not set")
	}

	store, err := Connect(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	store.prefix = fmt.Sprintf("roombook-test:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.TokenForSubject(ctx, "user-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before issue, got %v", err)
	}

	if err := store.Issue(ctx, "user-1", "token-1", time.Minute); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	token, err := store.TokenForSubject(ctx, "user-1")
	if err != nil || token != "token-1" {
		t.Fatalf("expected token-1, got %q, %v", token, err)
	}
	subject, err := store.Resolve(ctx, "token-1")
	if err != nil || subject != "user-1" {
		t.Fatalf("expected user-1, got %q, %v", subject, err)
	}

	if err := store.Revoke(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := store.Resolve(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected revoked token to be gone, got %v", err)
	}
	if _, err := store.TokenForSubject(ctx, "user-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no subject token after revoke, got %v", err)
	}
	if err := store.Revoke(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second revoke, got %v", err)
	}
}

func TestSessionStoreRejectsInvalidIssue(t *testing.T) {
	store := NewSessionStore(nil, "", nil)

	cases := []struct {
		user, token string
		ttl         time.Duration
	}{
		{user: "", token: "t", ttl: time.Minute},
		{user: "u", token: "", ttl: time.Minute},
		{user: "u", token: "t", ttl: 0},
	}
	for _, tc := range cases {
		if err := store.Issue(context.Background(), tc.user, tc.token, tc.ttl); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("Issue(%q, %q, %v) = %v, want ErrConstraintViolation", tc.user, tc.token, tc.ttl, err)
		}
	}
}

func TestSessionStoreKeys(t *testing.T) {
	store := NewSessionStore(nil, "", nil)

	if got := store.tokenKey("abc"); got != "roombook:session:token:abc" {
		t.Fatalf("unexpected token key %q", got)
	}
	if got := store.userKey("u1"); got != "roombook:session:user:u1" {
		t.Fatalf("unexpected user key %q", got)
	}
}
