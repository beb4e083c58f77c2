package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// BlobStore implements service.BlobStore on Redis strings without expiry.
type BlobStore struct {
	client redis.UniversalClient
	prefix string
	log    logger.Logger
}

// NewBlobStore creates a new BlobStore. Keys are stored as prefix+key.
func NewBlobStore(client redis.UniversalClient, prefix string, log logger.Logger) *BlobStore {
	return &BlobStore{client: client, prefix: prefix, log: log.WithComponent("RedisBlobStore")}
}

func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrNotFound
		}
		return nil, errors.ErrTransportFailure("redis:"+s.prefix+key, err)
	}
	return val, nil
}

func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		s.log.Error(ctx, "failed to save blob", err, logger.String("key", key))
		return errors.ErrTransportFailure("redis:"+s.prefix+key, err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.ErrTransportFailure("redis:"+s.prefix+key, err)
	}
	return nil
}
