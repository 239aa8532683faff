package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/roombook/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errMissingSessionToken = errors.New("a session token is required")
	errInvalidSession      = errors.New("the session token is invalid or expired")
	errTooManyLogins       = errors.New("too many login attempts, retry later")
)

const (
	codeBadRequest         = "BAD_REQUEST"
	codeInvalidInput       = "INVALID_INPUT"
	codeUnauthorized       = "UNAUTHORIZED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeForbidden          = "FORBIDDEN"
	codeNotFound           = "NOT_FOUND"
	codeConflict           = "CONFLICT"
	codeNoRoomAvailable    = "NO_ROOM_AVAILABLE"
	codeAlreadyExists      = "ALREADY_EXISTS"
	codePreconditionFailed = "PRECONDITION_FAILED"
	codeTooManyRequests    = "TOO_MANY_REQUESTS"
	codeInternal           = "INTERNAL"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps an application error onto a status code. Storage
// detail never reaches the client; unexpected errors are logged and reported
// as a generic 500.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: codeInvalidInput,
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeError(ctx, w, http.StatusUnauthorized, codeUnauthorized, errInvalidSession)
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: codeInvalidCredentials, Message: "login or password is incorrect"})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: codeForbidden, Message: "the resource belongs to another user"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: "the requested resource does not exist"})
	case errors.Is(err, application.ErrNoRoomAvailable):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: codeNoRoomAvailable, Message: "no room is free for the requested time"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: codeAlreadyExists, Message: "the resource already exists"})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: codeConflict, Message: "the room is already booked for the requested time"})
	case errors.Is(err, application.ErrPreconditionFailed):
		r.writeJSON(ctx, w, http.StatusPreconditionFailed, errorResponse{ErrorCode: codePreconditionFailed, Message: "If-Match is missing or does not match the current ETag"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// setETag writes the strong validator for a meeting's concurrency token.
func setETag(w http.ResponseWriter, token string) {
	if token != "" {
		w.Header().Set("ETag", `"`+token+`"`)
	}
}

// ifMatch returns the concurrency token carried by If-Match with any weak
// prefix and surrounding quotes removed.
func ifMatch(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("If-Match"))
	value = strings.TrimPrefix(value, "W/")
	return strings.Trim(value, `"`)
}
