package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/bootstrap"
	"github.com/example/roombook/internal/persistence/sqlite"
)

// FastArgon2idParams keeps password hashing cheap in tests. Hashes produced
// with it still verify through application.VerifyPassword.
var FastArgon2idParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// HashPassword hashes with FastArgon2idParams.
func HashPassword(password string) (string, error) {
	return application.CreatePasswordHash(password, FastArgon2idParams)
}

// ServiceFactory assists tests with constructing application services using
// deterministic clocks and tokens.
type ServiceFactory struct {
	Clock         *Clock
	ETags         *Sequence
	SessionTokens *Sequence
	Logger        *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:         NewClock(time.Time{}),
		ETags:         NewSequence("etag"),
		SessionTokens: NewSequence("session"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// MeetingServiceDeps captures dependencies for constructing a meeting service.
type MeetingServiceDeps struct {
	Meetings application.MeetingRepository
	Rooms    application.RoomRepository
	Metrics  application.BookingMetrics
}

// NewMeetingService builds a meeting service that stamps tokens from ETags.
func (f *ServiceFactory) NewMeetingService(deps MeetingServiceDeps) *application.MeetingService {
	svc := application.NewMeetingServiceWithLogger(deps.Meetings, deps.Rooms, f.ETags.Func(), f.Clock.NowFunc(), f.Logger)
	if deps.Metrics != nil {
		svc = svc.WithMetrics(deps.Metrics)
	}
	return svc
}

// NewRoomService builds a room service on the factory clock.
func (f *ServiceFactory) NewRoomService(rooms application.RoomRepository, meetings application.MeetingRepository) *application.RoomService {
	return application.NewRoomServiceWithLogger(rooms, meetings, f.Clock.NowFunc(), f.Logger)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users    application.UserRepository
	Meetings application.MeetingRepository
	Sessions application.SessionStore
}

// NewUserService builds a user service with fast password hashing.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	return application.NewUserService(deps.Users, deps.Meetings, deps.Sessions, HashPassword, f.Clock.NowFunc(), f.Logger)
}

// NewAuthService builds an auth service issuing tokens from SessionTokens.
func (f *ServiceFactory) NewAuthService(users application.UserRepository, sessions application.SessionStore, ttl time.Duration) *application.AuthService {
	return application.NewAuthServiceWithLogger(users, sessions, application.VerifyPassword, f.SessionTokens.Func(), ttl, f.Logger)
}

// Bootstrap wires every service against store the way the server does, with
// the factory's clock and token sequences.
func (f *ServiceFactory) Bootstrap(store *sqlite.Store) *bootstrap.Services {
	return bootstrap.NewServices(store, bootstrap.Options{
		Now:               f.Clock.NowFunc(),
		ConcurrencyTokens: f.ETags.Func(),
		SessionTokens:     f.SessionTokens.Func(),
		HashPassword:      HashPassword,
		Logger:            f.Logger,
	})
}
