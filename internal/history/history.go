// Package history keeps each user's detection results and removes the
// stored image together with its record.
package history

import (
	"context"
	"log/slog"

	"github.com/pixeon-io/pixeon/internal/models"
	"github.com/pixeon-io/pixeon/internal/storage"
)

// Store defines the interface for history storage operations
type Store interface {
	CreateHistory(ctx context.Context, h *models.DetectionHistory) error
	ListHistory(ctx context.Context, userID string, skip, limit int) ([]*models.DetectionHistory, error)
	GetHistory(ctx context.Context, userID, id string) (*models.DetectionHistory, error)
	DeleteHistory(ctx context.Context, userID, id string) error
}

// Blobs is the part of storage.Storage the manager needs
type Blobs interface {
	StoredRef(backend, key, location string) storage.Ref
	Delete(ctx context.Context, ref storage.Ref) bool
}

type Manager struct {
	store Store
	blobs Blobs
	log   *slog.Logger
}

func NewManager(store Store, blobs Blobs, log *slog.Logger) *Manager {
	return &Manager{store: store, blobs: blobs, log: log}
}

// Record saves the outcome of one detection for userID.
func (m *Manager) Record(ctx context.Context, userID string, ref storage.Ref, detections []models.DetectionBox, elapsed float64) (*models.DetectionHistory, error) {
	h := &models.DetectionHistory{
		UserID:         userID,
		ImagePath:      ref.Location,
		ImageKey:       ref.Key,
		StorageBackend: string(ref.Backend),
	}
	if err := h.MarshalPayload(detections, elapsed); err != nil {
		return nil, err
	}
	if err := m.store.CreateHistory(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// List returns userID's records, most recent first.
func (m *Manager) List(ctx context.Context, userID string, skip, limit int) ([]*models.DetectionHistory, error) {
	return m.store.ListHistory(ctx, userID, skip, limit)
}

// Get returns a record owned by userID. Missing and foreign records are
// both reported as not found.
func (m *Manager) Get(ctx context.Context, userID, id string) (*models.DetectionHistory, error) {
	return m.store.GetHistory(ctx, userID, id)
}

// Delete removes the record and, best effort, its image. The record goes
// even when the image cannot be removed.
func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	h, err := m.store.GetHistory(ctx, userID, id)
	if err != nil {
		return err
	}

	ref := m.blobs.StoredRef(h.StorageBackend, h.ImageKey, h.ImagePath)
	if !m.blobs.Delete(ctx, ref) {
		m.log.Warn("image not removed with history record", "history_id", h.ID, "backend", ref.Backend, "key", ref.Key)
	}

	if err := m.store.DeleteHistory(ctx, userID, id); err != nil {
		return err
	}
	m.log.Info("history deleted", "history_id", id, "user_id", userID)
	return nil
}
