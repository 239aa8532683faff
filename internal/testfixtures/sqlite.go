package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/roombook/internal/bootstrap"
	"github.com/example/roombook/internal/persistence/sqlite"
	"github.com/example/roombook/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides a migrated temporary SQLite store together with the
// application services wired on top of it.
type SQLiteHarness struct {
	Store    *sqlite.Store
	Services *bootstrap.Services
	Factory  *ServiceFactory

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a temporary database file, applies migrations and
// wires the services. Close is registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB, opts ...ServiceFactoryOption) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "roombook.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	factory := NewServiceFactory(append([]ServiceFactoryOption{WithLogger(logger)}, opts...)...)
	harness := &SQLiteHarness{
		Store:    store,
		Services: factory.Bootstrap(store),
		Factory:  factory,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
