package application

import (
	"errors"
	"strings"
	"testing"
)

var cheapArgon2idParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("correct horse", cheapArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := VerifyPassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, err := CreatePasswordHash("correct horse", cheapArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if other == hash {
		t.Fatalf("expected random salt to produce distinct hashes")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"plain":                                  ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA": ErrInvalidPasswordHash,
		"$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA":     ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA":    ErrInvalidPasswordHash,
	}
	for encoded, want := range cases {
		if err := VerifyPassword(encoded, "pw"); !errors.Is(err, want) {
			t.Fatalf("VerifyPassword(%q) = %v, want %v", encoded, err, want)
		}
	}
}

func TestTokenGenerators(t *testing.T) {
	t.Parallel()

	if token := NewSessionToken(); len(token) != 64 {
		t.Fatalf("expected 64 hex characters, got %q", token)
	}
	a, b := NewConcurrencyToken(), NewConcurrencyToken()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty concurrency tokens, got %q and %q", a, b)
	}
}
