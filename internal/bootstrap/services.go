// Package bootstrap assembles the application services on top of the SQLite
// store and a session backend.
package bootstrap

import (
	"log/slog"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/persistence/sqlite"
)

// Options tunes service construction. Zero values select production defaults.
type Options struct {
	// Sessions overrides the token store. Nil stores tokens in SQLite.
	Sessions          application.SessionStore
	SessionTTL        time.Duration
	Now               func() time.Time
	ConcurrencyTokens func() string
	SessionTokens     func() string
	HashPassword      application.PasswordHasher
	VerifyPassword    application.PasswordVerifier
	Metrics           application.BookingMetrics
	Logger            *slog.Logger
}

// Services groups the application services served over HTTP.
type Services struct {
	Users    *application.UserService
	Rooms    *application.RoomService
	Meetings *application.MeetingService
	Auth     *application.AuthService
	Sessions application.SessionStore
}

// NewServices wires every service against store.
func NewServices(store *sqlite.Store, opts Options) *Services {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users := NewUserRepository(store.Users)
	rooms := NewRoomRepository(store.Rooms)
	meetings := NewMeetingRepository(store.Meetings)

	sessions := opts.Sessions
	if sessions == nil {
		sessions = sqlite.NewSessionStore(store.Sessions, now)
	}

	meetingService := application.NewMeetingServiceWithLogger(meetings, rooms, opts.ConcurrencyTokens, now, logger)
	if opts.Metrics != nil {
		meetingService = meetingService.WithMetrics(opts.Metrics)
	}

	return &Services{
		Users:    application.NewUserService(users, meetings, sessions, opts.HashPassword, now, logger),
		Rooms:    application.NewRoomServiceWithLogger(rooms, meetings, now, logger),
		Meetings: meetingService,
		Auth:     application.NewAuthServiceWithLogger(users, sessions, opts.VerifyPassword, opts.SessionTokens, opts.SessionTTL, logger),
		Sessions: sessions,
	}
}
