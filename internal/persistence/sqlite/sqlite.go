// Package sqlite implements the persistence repositories on top of SQLite
// using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/roombook/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Store owns the connection pool and the repositories sharing it.
type Store struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Users    *UserRepository
	Rooms    *RoomRepository
	Meetings *MeetingRepository
	Sessions *SessionRepository
}

// Open connects to the database described by config. Call Migrate before use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	return &Store{
		pool:     pool,
		logger:   logger,
		Users:    NewUserRepository(pool),
		Rooms:    NewRoomRepository(pool),
		Meetings: NewMeetingRepository(pool),
		Sessions: NewSessionRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationDir,
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
