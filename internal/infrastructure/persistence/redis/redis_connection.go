// Package redis stores the serialized authorization and machine identifier in Redis.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/pkg/errors"
	"github.com/turtacn/entitle/pkg/logger"
)

// NewClient creates a Redis client for cfg and verifies it with a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error(ctx, "failed to connect to Redis", err, logger.String("address", cfg.Address))
		return nil, errors.ErrTransportFailure("redis://"+cfg.Address, err)
	}
	log.Info(ctx, "connected to Redis", logger.String("address", cfg.Address), logger.Int("db", cfg.DB))
	return client, nil
}
