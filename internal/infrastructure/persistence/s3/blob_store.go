// Package s3 mirrors blobs to S3-compatible object storage with minio-go.
package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// BlobStore implements service.BlobStore on one bucket, one object per key.
type BlobStore struct {
	client *minio.Client
	bucket string
	prefix string
	log    logger.Logger
}

// NewBlobStore creates a store for cfg. The endpoint may carry an http or
// https scheme; without one, cfg.Secure decides.
func NewBlobStore(cfg config.S3Config, log logger.Logger) (*BlobStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" {
		return nil, errors.ErrMissingConfiguration("storage.s3.endpoint")
	}
	if bucket == "" {
		return nil, errors.ErrMissingConfiguration("storage.s3.bucket")
	}

	host, secure, err := parseEndpoint(endpoint, cfg.Secure)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.ErrInvalidConfiguration("storage.s3.endpoint", err.Error()).WithCause(err)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "entitle"
	}
	return &BlobStore{client: client, bucket: bucket, prefix: prefix, log: log.WithComponent("S3BlobStore")}, nil
}

func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrapError(key, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, s.wrapError(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrapError(key, err)
	}
	return data, nil
}

func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		s.log.Error(ctx, "failed to upload blob", err, logger.String("bucket", s.bucket), logger.String("key", key))
		return s.wrapError(key, err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return s.wrapError(key, err)
	}
	return nil
}

func (s *BlobStore) objectName(key string) string {
	return path.Join(s.prefix, key+".json")
}

func (s *BlobStore) wrapError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.ErrNotFound
	}
	return errors.ErrTransportFailure("s3://"+path.Join(s.bucket, s.objectName(key)), err)
}

func parseEndpoint(raw string, secure bool) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, errors.ErrInvalidConfiguration("storage.s3.endpoint", err.Error()).WithCause(err)
		}
		if u.Host == "" {
			return "", false, errors.ErrInvalidConfiguration("storage.s3.endpoint", "missing host in "+raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, secure, nil
}
