package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestFileScannerScanMigrations(t *testing.T) {
	t.Parallel()

	t.Run("returns migrations sorted by numeric version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON t(a);")},
			"migrations/002_add_column.sql":     {Data: []byte("-- Description: widen table\nALTER TABLE t ADD COLUMN b TEXT;")},
			"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
			"migrations/README.md":              {Data: []byte("ignored")},
		}

		migrations, err := NewFileScanner(fsys).ScanMigrations("migrations")
		if err != nil {
			t.Fatalf("ScanMigrations failed: %v", err)
		}
		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}
		got := []string{migrations[0].Version, migrations[1].Version, migrations[2].Version}
		if got[0] != "001" || got[1] != "002" || got[2] != "010" {
			t.Fatalf("unexpected order: %v", got)
		}
		if migrations[0].Description != "initial schema" {
			t.Fatalf("expected description from filename, got %q", migrations[0].Description)
		}
		if migrations[1].Description != "widen table" {
			t.Fatalf("expected description from content, got %q", migrations[1].Description)
		}
		if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
			t.Fatalf("expected distinct checksums, got %q and %q", migrations[0].Checksum, migrations[1].Checksum)
		}
	})

	t.Run("rejects malformed names", func(t *testing.T) {
		fsys := fstest.MapFS{"migrations/initial.sql": {Data: []byte("CREATE TABLE t (a TEXT);")}}
		_, err := NewFileScanner(fsys).ScanMigrations("migrations")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/001_a.sql":  {Data: []byte("CREATE TABLE a (x TEXT);")},
			"migrations/0001_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
		}
		_, err := NewFileScanner(fsys).ScanMigrations("migrations")
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects comment-only files", func(t *testing.T) {
		fsys := fstest.MapFS{"migrations/001_empty.sql": {Data: []byte("-- nothing here\n")}}
		_, err := NewFileScanner(fsys).ScanMigrations("migrations")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	script := `
-- Description: sample
CREATE TABLE a (id TEXT);
CREATE TABLE b (
	id TEXT
);
CREATE TRIGGER IF NOT EXISTS a_guard
BEFORE INSERT ON a
BEGIN
	SELECT RAISE(ABORT, 'nope') WHERE NEW.id = '';
END;
CREATE INDEX idx_b ON b(id)
`
	statements := splitStatements(script)
	if len(statements) != 4 {
		t.Fatalf("expected 4 statements, got %d: %q", len(statements), statements)
	}
	if statements[2] != "CREATE TRIGGER IF NOT EXISTS a_guard\nBEFORE INSERT ON a\nBEGIN\nSELECT RAISE(ABORT, 'nope') WHERE NEW.id = '';\nEND" {
		t.Fatalf("unexpected trigger statement: %q", statements[2])
	}
	if statements[3] != "CREATE INDEX idx_b ON b(id)" {
		t.Fatalf("unexpected trailing statement: %q", statements[3])
	}
}
