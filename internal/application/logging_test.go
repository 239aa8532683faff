package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/roombook/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "MeetingService", "SaveMeeting", "meeting_id", "m1").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	out := scoped.String()
	for _, want := range []string{"service=MeetingService", "operation=SaveMeeting", "meeting_id=m1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                    nil,
		"unauthorized":        ErrUnauthorized,
		"forbidden":           ErrForbidden,
		"not_found":           fmt.Errorf("wrap: %w", ErrNotFound),
		"no_room_available":   ErrNoRoomAvailable,
		"conflict":            ErrConflict,
		"already_exists":      ErrAlreadyExists,
		"precondition_failed": ErrPreconditionFailed,
		"invalid_credentials": ErrInvalidCredentials,
		"validation":          &ValidationError{FieldErrors: map[string]string{"name": "required"}},
		"unexpected":          io.ErrUnexpectedEOF,
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
