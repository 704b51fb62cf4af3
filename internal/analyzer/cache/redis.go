package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
)

// Redis implements Cache against the external cache service.
type Redis struct {
	client *redis.Client
	logger logger.Logger
}

// NewRedis creates a cache client for the external service.
func NewRedis(addr, username, password string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Username: username,
			Password: password,
		}),
		logger: logger.Get().Named("cache"),
	}
}

// Get fetches and decodes a cached analysis. Every failure path is a miss.
func (r *Redis) Get(ctx context.Context, key string) (*model.AlignmentResult, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug(ctx, "cache get failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}

	var result model.AlignmentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		r.logger.Warn(ctx, "cache entry undecodable, treating as miss",
			logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return &result, true
}

// Set stores an analysis result. Write failures are logged and swallowed.
func (r *Redis) Set(ctx context.Context, key string, value *model.AlignmentResult, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn(ctx, "cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		r.logger.Warn(ctx, "cache set failed", logger.String("key", key), logger.Error(err))
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
