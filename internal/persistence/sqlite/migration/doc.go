// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migrations are read from an fs.FS, usually an embed.FS compiled into the
// binary, and must be named {version}_{description}.sql, for example
// "001_initial_schema.sql". Versions are applied in ascending numeric order,
// each inside its own transaction, and recorded in a schema_migrations table
// so that a second run is a no-op.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewFileScanner(migrations), migration.NewSQLiteExecutor(db), "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
