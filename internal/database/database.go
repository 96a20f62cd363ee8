package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps the relational store used for users and detection history.
type DB struct {
	conn   *sql.DB
	driver string
	log    *slog.Logger
}

// ParseURL maps a DATABASE_URL to a database/sql driver name and DSN.
// Accepted forms are sqlite:///relative.db, sqlite:////abs/path.db and
// postgres:// or postgresql:// URLs.
func ParseURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite:///"):
		path := strings.TrimPrefix(url, "sqlite:///")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url has no path: %s", url)
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	default:
		return "", "", fmt.Errorf("unsupported database url: %s", url)
	}
}

// Open connects to the database named by url and applies pending migrations.
func Open(ctx context.Context, url string, log *slog.Logger) (*DB, error) {
	driver, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	switch driver {
	case DriverPostgres:
		conn, err = openPostgres(dsn)
	default:
		conn, err = openSQLite(dsn, log)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver, log: log}
	if err := db.RunMigrations(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("database initialized", "driver", driver)
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	conn, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)
	return conn, nil
}

func openSQLite(path string, log *slog.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	log.Debug("opening SQLite database", "dsn", dsn)

	conn, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)
	return conn, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
