package persistence

import "time"

// User represents an account able to book rooms.
type User struct {
	ID           string
	Login        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room represents a bookable meeting room.
type Room struct {
	ID          string
	Name        string
	Description *string
	Place       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Meeting represents a room reservation. Placeholder rows are reservation slots
// that have been issued to a user but not yet filled in.
type Meeting struct {
	ID          string
	Name        string
	Description *string
	Start       time.Time
	End         time.Time
	RoomID      *string
	UserID      string
	ETag        string
	Placeholder bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session binds an opaque bearer token to a user until it expires.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
