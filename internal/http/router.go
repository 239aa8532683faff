package http

import (
	"context"
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Meetings *MeetingHandler
	// Sessions authenticates every route except registration, login, health
	// and metrics.
	Sessions TokenValidator
	// LoginLimiter throttles POST /tokens when set.
	LoginLimiter *LoginLimiter
	// Health backs GET /healthz; nil always reports ok.
	Health func(ctx context.Context) error
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Instrument wraps the mux directly so that it observes the matched
	// route pattern.
	Instrument func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)

	protect := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Sessions != nil {
		requireSession := RequireSession(cfg.Sessions, logger)
		protect = func(h http.HandlerFunc) http.Handler { return requireSession(h) }
	}

	if cfg.Auth != nil {
		var login http.Handler = http.HandlerFunc(cfg.Auth.CreateToken)
		if cfg.LoginLimiter != nil {
			login = cfg.LoginLimiter.Middleware(login)
		}
		mux.Handle("POST /tokens", login)
		mux.Handle("DELETE /tokens", protect(cfg.Auth.DeleteToken))
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /users", cfg.Users.Register)
		mux.Handle("GET /users/{id}", protect(cfg.Users.Get))
		mux.Handle("PUT /users/{id}", protect(cfg.Users.Update))
		mux.Handle("DELETE /users/{id}", protect(cfg.Users.Delete))
		mux.Handle("GET /users/{id}/meetings", protect(cfg.Users.ListMeetings))
		mux.Handle("DELETE /users/{id}/meetings", protect(cfg.Users.DeleteMeetings))
	}

	if cfg.Rooms != nil {
		mux.Handle("GET /rooms", protect(cfg.Rooms.List))
		mux.Handle("POST /rooms", protect(cfg.Rooms.Create))
		mux.Handle("GET /rooms/{id}", protect(cfg.Rooms.Get))
		mux.Handle("PUT /rooms/{id}", protect(cfg.Rooms.Update))
		mux.Handle("DELETE /rooms/{id}", protect(cfg.Rooms.Delete))
		mux.Handle("GET /rooms/{id}/meetings", protect(cfg.Rooms.ListMeetings))
	}

	if cfg.Meetings != nil {
		mux.Handle("GET /meetings", protect(cfg.Meetings.List))
		mux.Handle("POST /meetings", protect(cfg.Meetings.Create))
		mux.Handle("GET /meetings/{id}", protect(cfg.Meetings.Get))
		mux.Handle("PUT /meetings/{id}", protect(cfg.Meetings.Save))
		mux.Handle("DELETE /meetings/{id}", protect(cfg.Meetings.Delete))
		mux.Handle("PUT /meetings/{id}/rooms/{room_id}", protect(cfg.Meetings.Move))
	}

	responder := newResponder(logger)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if cfg.Instrument != nil {
		handler = cfg.Instrument(handler)
	}
	return Chain(handler, cfg.Middleware...)
}

type healthResponse struct {
	Status string `json:"status"`
}
