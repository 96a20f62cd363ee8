package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/models"
)

const historyColumns = "id, user_id, image_path, image_key, storage_backend, detection_results, created_at"

// CreateHistory inserts h, assigning its ID and creation time.
func (db *DB) CreateHistory(ctx context.Context, h *models.DetectionHistory) error {
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		db.rebind(`INSERT INTO detection_history (`+historyColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
		h.ID, h.UserID, h.ImagePath, h.ImageKey, h.StorageBackend, h.DetectionResults, h.CreatedAt,
	)
	return err
}

// ListHistory returns userID's records, most recent first.
func (db *DB) ListHistory(ctx context.Context, userID string, skip, limit int) ([]*models.DetectionHistory, error) {
	rows, err := db.conn.QueryContext(ctx,
		db.rebind(`SELECT `+historyColumns+` FROM detection_history
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?`),
		userID, limit, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*models.DetectionHistory{}
	for rows.Next() {
		h := &models.DetectionHistory{}
		if err := scanHistory(rows, h); err != nil {
			return nil, err
		}
		records = append(records, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetHistory returns the record only if it exists and belongs to userID.
func (db *DB) GetHistory(ctx context.Context, userID, id string) (*models.DetectionHistory, error) {
	h := &models.DetectionHistory{}
	row := db.conn.QueryRowContext(ctx,
		db.rebind(`SELECT `+historyColumns+` FROM detection_history WHERE id = ? AND user_id = ?`),
		id, userID,
	)
	if err := scanHistory(row, h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.Newf(common.ErrNotFound, "history not found")
		}
		return nil, err
	}
	return h, nil
}

// DeleteHistory removes the record if it belongs to userID.
func (db *DB) DeleteHistory(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		db.rebind("DELETE FROM detection_history WHERE id = ? AND user_id = ?"),
		id, userID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return common.Newf(common.ErrNotFound, "history not found")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(s scanner, h *models.DetectionHistory) error {
	return s.Scan(&h.ID, &h.UserID, &h.ImagePath, &h.ImageKey, &h.StorageBackend, &h.DetectionResults, &h.CreatedAt)
}
