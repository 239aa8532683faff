package application

import (
	"context"
	"time"

	"github.com/example/roombook/internal/persistence"
)

// Repository is the storage contract the services rely on, expressed in
// application types. Implementations report missing records with
// persistence.ErrNotFound.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (T, error)
	FindByKey(ctx context.Context, key, value string) (T, error)
	List(ctx context.Context, filter persistence.Filter, page persistence.Page) ([]T, int, error)
	Save(ctx context.Context, record T) (string, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, filter persistence.Filter) (int, error)
}

// UserRepository stores accounts together with their password hashes.
type UserRepository interface {
	Repository[UserCredentials]
}

// RoomRepository stores rooms in a stable insertion order.
type RoomRepository interface {
	Repository[Room]
}

// MeetingRepository stores meetings and reservation slots.
type MeetingRepository interface {
	Repository[Meeting]

	Query(ctx context.Context, query persistence.MeetingQuery, page persistence.Page) ([]Meeting, int, error)
	Overlapping(ctx context.Context, roomID string, start, end time.Time) ([]Meeting, error)
	FindPlaceholder(ctx context.Context, userID string) (Meeting, error)
	Replace(ctx context.Context, meeting Meeting, expectedETag string) error
}

// SessionStore keeps opaque bearer tokens bound to a user. At most one live
// token exists per user; lookups of unknown or expired tokens return
// persistence.ErrNotFound.
type SessionStore interface {
	TokenForSubject(ctx context.Context, userID string) (string, error)
	Issue(ctx context.Context, userID, token string, ttl time.Duration) error
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// BookingMetrics receives booking outcomes from the meeting service.
type BookingMetrics interface {
	MeetingBooked(mode string)
	BookingRejected(reason string)
	SlotIssued(reused bool)
}

type noopBookingMetrics struct{}

func (noopBookingMetrics) MeetingBooked(string)   {}
func (noopBookingMetrics) BookingRejected(string) {}
func (noopBookingMetrics) SlotIssued(bool)        {}
