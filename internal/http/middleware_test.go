package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/roombook/internal/application"
)

type fakeTokenValidator struct {
	principal application.Principal
	err       error
	seen      []string
}

func (f *fakeTokenValidator) ValidateToken(_ context.Context, token string) (application.Principal, error) {
	f.seen = append(f.seen, token)
	return f.principal, f.err
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookie         *http.Cookie
			header         string
			validatorErr   error
			expectedStatus int
		}{
			{name: "missing credentials", expectedStatus: http.StatusUnauthorized},
			{name: "non bearer scheme", header: "Basic Zm9vOmJhcg==", expectedStatus: http.StatusUnauthorized},
			{
				name:           "revoked session",
				cookie:         &http.Cookie{Name: sessionCookieName, Value: "revoked-token"},
				validatorErr:   application.ErrUnauthorized,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "store failure",
				header:         "Bearer transient",
				validatorErr:   errors.New("connection refused"),
				expectedStatus: http.StatusInternalServerError,
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookie != nil {
					req.AddCookie(tc.cookie)
				}
				if tc.header != "" {
					req.Header.Set("Authorization", tc.header)
				}
				rec := httptest.NewRecorder()

				validator := &fakeTokenValidator{err: tc.validatorErr}
				handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(rec, req)

				if rec.Code != tc.expectedStatus {
					t.Fatalf("expected %d, got %d", tc.expectedStatus, rec.Code)
				}
				if strings.Contains(rec.Body.String(), "connection refused") {
					t.Fatalf("store detail leaked: %s", rec.Body.String())
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		validator := &fakeTokenValidator{principal: alice}
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "bearer  valid-token")
		rec := httptest.NewRecorder()

		var captured application.Principal
		var token string
		handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured, _ = PrincipalFromContext(r.Context())
			token = tokenFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if captured != alice || token != "valid-token" {
			t.Fatalf("unexpected principal %+v or token %q", captured, token)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	var fromContext *slog.Logger
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms", nil))

	if fromContext == nil {
		t.Fatalf("expected request scoped logger in context")
	}
	out := buf.String()
	for _, want := range []string{"request_id=1", "request_id=2", "status=418", "path=/rooms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), nil, mark("inner"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "outer,inner,handler" {
		t.Fatalf("unexpected order %v", order)
	}
}
