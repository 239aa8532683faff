package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func newTestManager(t *testing.T, fsys fstest.MapFS) (*Manager, *SQLiteExecutor) {
	t.Helper()

	db, err := NewConnectionManager(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db"))).GetConnection()
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	executor := NewSQLiteExecutor(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(NewFileScanner(fsys), executor, "migrations", logger), executor
}

func TestManagerRunMigrations(t *testing.T) {
	t.Parallel()

	t.Run("applies pending migrations once", func(t *testing.T) {
		ctx := context.Background()
		fsys := fstest.MapFS{
			"migrations/001_create.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
			"migrations/002_insert.sql": {Data: []byte("INSERT INTO items (id) VALUES ('seed');")},
		}
		manager, executor := newTestManager(t, fsys)

		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("first RunMigrations failed: %v", err)
		}
		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("second RunMigrations failed: %v", err)
		}

		var count int
		if err := executor.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
			t.Fatalf("count query failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected seed row once, got %d", count)
		}

		status, err := manager.GetMigrationStatus(ctx)
		if err != nil {
			t.Fatalf("GetMigrationStatus failed: %v", err)
		}
		if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
			t.Fatalf("unexpected status: %#v", status)
		}
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		ctx := context.Background()
		fsys := fstest.MapFS{
			"migrations/001_broken.sql": {Data: []byte("CREATE TABLE ok (id TEXT);\nINSERT INTO missing VALUES (1);")},
		}
		manager, executor := newTestManager(t, fsys)

		err := manager.RunMigrations(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}

		var name string
		err = executor.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'ok'").Scan(&name)
		if err == nil {
			t.Fatalf("expected table from failed migration to be rolled back")
		}
	})

	t.Run("detects gaps in the sequence", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			"migrations/003_c.sql": {Data: []byte("CREATE TABLE c (id TEXT);")},
		}
		manager, _ := newTestManager(t, fsys)
		if err := manager.RunMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("detects edited migrations", func(t *testing.T) {
		ctx := context.Background()
		fsys := fstest.MapFS{
			"migrations/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
		}
		manager, _ := newTestManager(t, fsys)
		if err := manager.RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		fsys["migrations/001_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, extra TEXT);")}
		if err := manager.RunMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestConnectionManagerDataSourceName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		config SQLiteConfig
		want   string
	}{
		{
			name:   "plain path without options",
			config: SQLiteConfig{DSN: "/tmp/x.db"},
			want:   "/tmp/x.db",
		},
		{
			name:   "pragmas appended to existing query",
			config: SQLiteConfig{DSN: "file:x.db?cache=shared", EnableForeignKeys: true},
			want:   "file:x.db?cache=shared&_pragma=foreign_keys%281%29",
		},
		{
			name:   "memory database uses URI form",
			config: SQLiteConfig{DSN: ":memory:", TxLock: "immediate"},
			want:   "file::memory:?_txlock=immediate",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewConnectionManager(tc.config).DataSourceName(); got != tc.want {
				t.Fatalf("DataSourceName() = %q, want %q", got, tc.want)
			}
		})
	}

	if err := NewConnectionManager(SQLiteConfig{DSN: "x.db", JournalMode: "BOGUS"}).ValidateConfig(); err == nil {
		t.Fatalf("expected invalid journal mode to be rejected")
	}
	if got := databasePath("file::memory:?cache=shared"); got != "" {
		t.Fatalf("expected no path for memory DSN, got %q", got)
	}
}
