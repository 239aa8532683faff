package persistence

import (
	"context"
	"time"
)

// Filter holds equality conditions keyed by field name. Each repository
// documents the field names it accepts and rejects the rest with ErrUnknownFilter.
type Filter map[string]string

// Page bounds a listing. A zero Limit returns every record after Skip.
type Page struct {
	Skip  int
	Limit int
}

// Repository is the storage contract shared by every entity type.
//
// Save inserts the record when its ID is empty, assigning and returning a new
// identifier, and replaces the stored record in place otherwise. List returns
// the requested page together with the total number of matching records.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (T, error)
	FindByKey(ctx context.Context, key, value string) (T, error)
	List(ctx context.Context, filter Filter, page Page) ([]T, int, error)
	Save(ctx context.Context, record T) (string, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, filter Filter) (int, error)
}

// UserRepository stores user accounts. Accepted filter and key fields: id, login, name.
type UserRepository interface {
	Repository[User]
}

// RoomRepository stores rooms. Listings follow insertion order, which is the
// stable order used for automatic room selection.
// Accepted filter and key fields: id, name, place.
type RoomRepository interface {
	Repository[Room]
}

// MeetingQuery narrows meeting listings beyond plain field equality.
type MeetingQuery struct {
	Filter              Filter
	IncludePlaceholders bool
	// EndsAfter drops meetings whose end time is at or before the instant.
	EndsAfter *time.Time
}

// MeetingRepository stores meetings and reservation slots.
// Accepted filter and key fields: id, name, room_id, user_id, etag.
type MeetingRepository interface {
	Repository[Meeting]

	// Query lists meetings ordered by start time then ID.
	Query(ctx context.Context, query MeetingQuery, page Page) ([]Meeting, int, error)
	// Overlapping returns the confirmed meetings intersecting [start, end).
	// An empty roomID matches every room.
	Overlapping(ctx context.Context, roomID string, start, end time.Time) ([]Meeting, error)
	// FindPlaceholder returns the pending reservation slot held by userID.
	FindPlaceholder(ctx context.Context, userID string) (Meeting, error)
	// Replace overwrites a stored meeting only if its concurrency token still
	// equals expectedETag, returning ErrStale otherwise.
	Replace(ctx context.Context, meeting Meeting, expectedETag string) error
}

// SessionRepository stores bearer tokens for the SQLite session backend.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	FindSessionByUser(ctx context.Context, userID string, reference time.Time) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int, error)
}
