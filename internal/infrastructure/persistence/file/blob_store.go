// Package file stores blobs as files in a private directory.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// BlobStore implements service.BlobStore with one 0600 file per key.
type BlobStore struct {
	dir string
	log logger.Logger
}

// NewBlobStore creates a store rooted at dir. Environment variables in dir are expanded.
func NewBlobStore(dir string, log logger.Logger) (*BlobStore, error) {
	dir = os.ExpandEnv(dir)
	if strings.TrimSpace(dir) == "" {
		return nil, errors.ErrMissingConfiguration("storage.file.dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.ErrInvalidConfiguration("storage.file.dir", err.Error()).WithCause(err)
	}
	return &BlobStore{dir: dir, log: log.WithComponent("FileBlobStore")}, nil
}

func (s *BlobStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key)+".json")
}

func (s *BlobStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.ErrTransportFailure(s.path(key), err)
	}
	return data, nil
}

// Save writes data to a temporary file and renames it into place.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return errors.ErrTransportFailure(target, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.ErrTransportFailure(target, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.ErrTransportFailure(target, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.ErrTransportFailure(target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		s.log.Error(ctx, "failed to persist blob", err, logger.String("path", target))
		return errors.ErrTransportFailure(target, err)
	}
	return nil
}

func (s *BlobStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.ErrTransportFailure(s.path(key), err)
	}
	return nil
}
