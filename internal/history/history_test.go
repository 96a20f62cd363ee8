package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/database"
	"github.com/pixeon-io/pixeon/internal/logging"
	"github.com/pixeon-io/pixeon/internal/models"
	"github.com/pixeon-io/pixeon/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db      *database.DB
	storage *storage.Storage
	manager *Manager
	user    *models.User
	other   *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.Open(ctx, "sqlite:///"+filepath.Join(dir, "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blob, err := storage.NewLocalBlob(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	st := storage.NewWithBlob(blob, logging.Discard())

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(ctx, user))
	other := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(ctx, other))

	return &fixture{
		db:      db,
		storage: st,
		manager: NewManager(db, st, logging.Discard()),
		user:    user,
		other:   other,
	}
}

func (f *fixture) record(t *testing.T) (*models.DetectionHistory, storage.Ref) {
	t.Helper()
	ctx := context.Background()
	ref, err := f.storage.Store(ctx, []byte("img"), "a.png", "image/png")
	require.NoError(t, err)

	boxes := []models.DetectionBox{{X1: 1, Y1: 1, X2: 5, Y2: 5, Label: "cat", Confidence: 90.12}}
	h, err := f.manager.Record(ctx, f.user.ID, ref, boxes, 0.42)
	require.NoError(t, err)
	return h, ref
}

func TestRecordAndGet(t *testing.T) {
	f := setup(t)
	h, ref := f.record(t)

	assert.NotEmpty(t, h.ID)
	assert.Equal(t, ref.Location, h.ImagePath)
	assert.Equal(t, "local", h.StorageBackend)

	got, err := f.manager.Get(context.Background(), f.user.ID, h.ID)
	require.NoError(t, err)

	payload, err := got.Payload()
	require.NoError(t, err)
	require.Len(t, payload.Detections, 1)
	assert.Equal(t, "cat", payload.Detections[0].Label)
	assert.Equal(t, 0.42, payload.ProcessingTime)
}

func TestGetForeignRecord(t *testing.T) {
	f := setup(t)
	h, _ := f.record(t)

	_, err := f.manager.Get(context.Background(), f.other.ID, h.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, missing := f.manager.Get(context.Background(), f.user.ID, "no-such-id")
	assert.ErrorIs(t, missing, common.ErrNotFound)
	assert.Equal(t, common.Message(err, ""), common.Message(missing, ""))
}

func TestList(t *testing.T) {
	f := setup(t)
	f.record(t)
	f.record(t)

	list, err := f.manager.List(context.Background(), f.user.ID, 0, 20)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.manager.List(context.Background(), f.other.ID, 0, 20)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteRemovesImageAndRecord(t *testing.T) {
	f := setup(t)
	h, ref := f.record(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Delete(ctx, f.user.ID, h.ID))

	assert.NoFileExists(t, ref.Location)
	_, err := f.manager.Get(ctx, f.user.ID, h.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = f.manager.Delete(ctx, f.user.ID, h.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "second delete")
}

func TestDeleteWithMissingImage(t *testing.T) {
	f := setup(t)
	h, ref := f.record(t)
	require.NoError(t, os.Remove(ref.Location))

	require.NoError(t, f.manager.Delete(context.Background(), f.user.ID, h.ID))

	_, err := f.manager.Get(context.Background(), f.user.ID, h.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteForeignRecordKeepsEverything(t *testing.T) {
	f := setup(t)
	h, ref := f.record(t)

	err := f.manager.Delete(context.Background(), f.other.ID, h.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.FileExists(t, ref.Location)
	_, err = f.manager.Get(context.Background(), f.user.ID, h.ID)
	assert.NoError(t, err)
}

func TestDeleteLegacyRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ref, err := f.storage.Store(ctx, []byte("img"), "a.png", "image/png")
	require.NoError(t, err)

	// rows written before backend and key were stored
	h := &models.DetectionHistory{UserID: f.user.ID, ImagePath: ref.Location, DetectionResults: "{}"}
	require.NoError(t, f.db.CreateHistory(ctx, h))

	require.NoError(t, f.manager.Delete(ctx, f.user.ID, h.ID))
	assert.NoFileExists(t, ref.Location)
}

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateHistory(ctx context.Context, h *models.DetectionHistory) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockStore) ListHistory(ctx context.Context, userID string, skip, limit int) ([]*models.DetectionHistory, error) {
	args := m.Called(ctx, userID, skip, limit)
	list, _ := args.Get(0).([]*models.DetectionHistory)
	return list, args.Error(1)
}

func (m *MockStore) GetHistory(ctx context.Context, userID, id string) (*models.DetectionHistory, error) {
	args := m.Called(ctx, userID, id)
	h, _ := args.Get(0).(*models.DetectionHistory)
	return h, args.Error(1)
}

func (m *MockStore) DeleteHistory(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func TestRecordStoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("CreateHistory", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	m := NewManager(store, nil, logging.Discard())

	_, err := m.Record(context.Background(), "u", storage.Ref{Backend: storage.BackendLocal, Key: "k", Location: "l"}, nil, 0.1)
	assert.Error(t, err)
}
