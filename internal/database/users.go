package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/models"
)

const userColumns = "id, username, email, password_hash, created_at"

// CreateUser inserts user, assigning its ID and creation time. A duplicate
// username or email is reported as common.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		db.rebind("INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)"),
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if column, ok := uniqueViolation(err); ok {
		return common.Wrap(common.ErrConflict, err, column+" already registered")
	}
	return err
}

// uniqueViolation reports whether err is a unique constraint failure and
// which users column caused it. username wins when the driver names both.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var detail string
	var sqliteErr sqlite3.Error
	var pqErr *pq.Error
	switch {
	case errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = sqliteErr.Error()
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		detail = pqErr.Constraint + " " + pqErr.Detail
	default:
		return "", false
	}

	if strings.Contains(detail, "email") && !strings.Contains(detail, "username") {
		return "email", true
	}
	return "username", true
}

// GetUserByID retrieves a user by their ID
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, "email", email)
}

// GetUserByLogin looks a user up by username, then by email.
func (db *DB) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	user, err := db.GetUserByUsername(ctx, identifier)
	if err == nil || !errors.Is(err, common.ErrNotFound) {
		return user, err
	}
	return db.GetUserByEmail(ctx, identifier)
}

// UsernameExists reports whether username is taken
func (db *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	return db.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username)
}

// EmailExists reports whether email is taken
func (db *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email)
}

// column is always one of the constants above, never caller input.
func (db *DB) getUser(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	err := db.conn.QueryRowContext(ctx,
		db.rebind("SELECT "+userColumns+" FROM users WHERE "+column+" = ?"),
		value,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.Newf(common.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := db.conn.QueryRowContext(ctx, db.rebind(query), args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
