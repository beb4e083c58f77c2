// Package memory keeps blobs in process memory. State is lost on exit.
package memory

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/entitle/pkg/errors"
)

// BlobStore implements service.BlobStore on go-cache without expiry.
type BlobStore struct {
	cache *cache.Cache
}

func NewBlobStore() *BlobStore {
	return &BlobStore{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *BlobStore) Load(_ context.Context, key string) ([]byte, error) {
	v, found := s.cache.Get(key)
	if !found {
		return nil, errors.ErrNotFound
	}
	data := v.([]byte)
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *BlobStore) Save(_ context.Context, key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.cache.Set(key, cp, cache.NoExpiration)
	return nil
}

func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
