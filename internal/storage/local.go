package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalBlob stores blobs as files in one directory
type LocalBlob struct {
	dir string
}

// NewLocalBlob creates dir if needed.
func NewLocalBlob(dir string) (*LocalBlob, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &LocalBlob{dir: dir}, nil
}

func (l *LocalBlob) Backend() Backend {
	return BackendLocal
}

func (l *LocalBlob) Put(_ context.Context, name string, data []byte, _ string) (Ref, error) {
	p := filepath.Join(l.dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0644); err != nil {
		return Ref{}, fmt.Errorf("failed to write file: %w", err)
	}
	return Ref{Backend: BackendLocal, Key: filepath.Base(p), Location: p}, nil
}

// Delete removes the file. Keys never escape the storage directory.
func (l *LocalBlob) Delete(_ context.Context, key string) (bool, error) {
	err := os.Remove(filepath.Join(l.dir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
