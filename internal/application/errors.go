package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a room is already booked for the requested window.
	ErrConflict = errors.New("application: conflict")
	// ErrNoRoomAvailable is returned when automatic selection finds no free room.
	ErrNoRoomAvailable = errors.New("application: no room available")
	// ErrAlreadyExists is returned when a unique attribute such as a login is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrPreconditionFailed is returned when a concurrency token is missing or stale.
	ErrPreconditionFailed = errors.New("application: precondition failed")
	// ErrForbidden is returned when the acting principal tries to modify another user's resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrUnauthorized is returned when no valid session backs the request.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// IsConflict reports whether err belongs to the conflict class: a booked
// room, no free room, or a duplicate unique attribute.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrNoRoomAvailable) || errors.Is(err, ErrAlreadyExists)
}
