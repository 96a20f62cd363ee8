package database

import (
	"context"
	"fmt"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations
func GetMigrations(driver string) []Migration {
	if driver == DriverPostgres {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

// getPostgresMigrations returns PostgreSQL migrations
func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(36) PRIMARY KEY,
				username VARCHAR(255) UNIQUE NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     2,
			Description: "Create detection_history table",
			SQL: `CREATE TABLE IF NOT EXISTS detection_history (
				id VARCHAR(36) PRIMARY KEY,
				user_id VARCHAR(36) NOT NULL REFERENCES users(id),
				image_path VARCHAR(500) NOT NULL,
				image_key VARCHAR(500) NOT NULL DEFAULT '',
				storage_backend VARCHAR(16) NOT NULL DEFAULT '',
				detection_results TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     3,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
				CREATE INDEX IF NOT EXISTS idx_detection_history_user_created ON detection_history(user_id, created_at DESC)`,
		},
	}
}

// getSQLiteMigrations returns SQLite migrations
func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     2,
			Description: "Create detection_history table",
			SQL: `CREATE TABLE IF NOT EXISTS detection_history (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				image_path TEXT NOT NULL,
				image_key TEXT NOT NULL DEFAULT '',
				storage_backend TEXT NOT NULL DEFAULT '',
				detection_results TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
		{
			Version:     3,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
				CREATE INDEX IF NOT EXISTS idx_detection_history_user_created ON detection_history(user_id, created_at DESC)`,
		},
	}
}

// createMigrationsTable creates the schema_migrations table if needed
func (db *DB) createMigrationsTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if db.driver == DriverPostgres {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	}
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations runs all pending migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range GetMigrations(db.driver) {
		if applied[migration.Version] {
			continue
		}

		db.log.Info("applying migration", "version", migration.Version, "description", migration.Description)

		// Split SQL by semicolon and execute each statement
		for _, stmt := range strings.Split(migration.SQL, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
			}
		}

		if _, err := db.conn.ExecContext(ctx, db.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
