// Package storage persists uploaded images either on the local filesystem
// or in an S3-compatible bucket. The backend is chosen once at startup.
package storage

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/pixeon-io/pixeon/internal/config"
)

type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// Ref identifies a stored blob. Location is the opaque reference saved with
// a history record: a file path for local blobs, a URL for S3 blobs.
type Ref struct {
	Backend  Backend
	Key      string
	Location string
}

// Blob is one storage backend
type Blob interface {
	Backend() Backend
	Put(ctx context.Context, name string, data []byte, contentType string) (Ref, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Storage stores and deletes image blobs through the configured backend.
type Storage struct {
	blob Blob
	log  *slog.Logger
}

// New selects S3 when credentials and bucket are configured and the local
// directory otherwise.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Storage, error) {
	if cfg.S3Enabled() {
		blob, err := NewS3Blob(ctx, S3Options{
			Bucket:          cfg.AWSS3Bucket,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSS3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		log.Info("using S3 storage", "bucket", cfg.AWSS3Bucket, "region", cfg.AWSRegion)
		return NewWithBlob(blob, log), nil
	}

	blob, err := NewLocalBlob(cfg.LocalStoragePath)
	if err != nil {
		return nil, err
	}
	log.Info("using local storage", "path", cfg.LocalStoragePath)
	return NewWithBlob(blob, log), nil
}

func NewWithBlob(blob Blob, log *slog.Logger) *Storage {
	return &Storage{blob: blob, log: log}
}

// Backend reports the active backend
func (s *Storage) Backend() Backend {
	return s.blob.Backend()
}

// LocalDir returns the directory served under /uploads, or "" when the
// active backend is not local.
func (s *Storage) LocalDir() string {
	if l, ok := s.blob.(*LocalBlob); ok {
		return l.dir
	}
	return ""
}

// Store writes data under a fresh unique name that keeps the sanitized
// extension of originalFilename.
func (s *Storage) Store(ctx context.Context, data []byte, originalFilename, contentType string) (Ref, error) {
	name := uuid.NewString() + Extension(originalFilename, contentType)

	ref, err := s.blob.Put(ctx, name, data, contentType)
	if err != nil {
		return Ref{}, common.Wrap(common.ErrStorage, err, "failed to store image")
	}

	s.log.Debug("blob stored", "backend", ref.Backend, "key", ref.Key)
	return ref, nil
}

// Resolve maps a stored reference to something a client can fetch. URLs pass
// through unchanged and local paths are returned as stored.
func (s *Storage) Resolve(location string) string {
	return location
}

// PublicURL is the image URL returned to API clients.
func (s *Storage) PublicURL(ref Ref) string {
	if ref.Backend == BackendLocal {
		return "/uploads/" + filepath.Base(ref.Key)
	}
	return s.Resolve(ref.Location)
}

// Delete removes the blob behind ref. Failures are logged and reported as
// false; they are never returned to the caller.
func (s *Storage) Delete(ctx context.Context, ref Ref) bool {
	if ref.Key == "" {
		return false
	}
	if ref.Backend != s.blob.Backend() {
		s.log.Warn("blob belongs to an inactive backend, not deleted", "backend", ref.Backend, "key", ref.Key)
		return false
	}

	deleted, err := s.blob.Delete(ctx, ref.Key)
	if err != nil {
		s.log.Error("failed to delete blob", "backend", ref.Backend, "key", ref.Key, "error", err)
		return false
	}
	if !deleted {
		s.log.Warn("blob already gone", "backend", ref.Backend, "key", ref.Key)
	}
	return deleted
}

// ParseRef rebuilds a Ref from a stored location for records saved without
// a backend tag. URL-shaped locations are S3 objects; anything else is a
// local file.
func ParseRef(location, bucket string) Ref {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		key := strings.TrimPrefix(u.Path, "/")
		// path-style URLs carry the bucket as the first segment
		if bucket != "" {
			key = strings.TrimPrefix(key, bucket+"/")
		}
		return Ref{Backend: BackendS3, Key: key, Location: location}
	}
	return Ref{Backend: BackendLocal, Key: filepath.Base(location), Location: location}
}

// StoredRef rebuilds the Ref saved with a record, falling back to ParseRef
// when backend or key were not recorded.
func (s *Storage) StoredRef(backend, key, location string) Ref {
	if backend != "" && key != "" {
		return Ref{Backend: Backend(backend), Key: key, Location: location}
	}
	return ParseRef(location, s.Bucket())
}

// Bucket returns the S3 bucket, or "" for local storage.
func (s *Storage) Bucket() string {
	if b, ok := s.blob.(*S3Blob); ok {
		return b.bucket
	}
	return ""
}

var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// Extension keeps a short alphanumeric extension from the client filename
// and otherwise derives one from the content type.
func Extension(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(filename)))
	if len(ext) > 1 && len(ext) <= 6 && isAlnum(ext[1:]) {
		return ext
	}
	return contentTypeExt[strings.ToLower(contentType)]
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
