package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

// cacheNamespace prefixes every key so the API can share a Redis database.
const cacheNamespace = "remuneration:"

// CacheRepository keeps JSON snapshots of bills in Redis. Without a client every
// read is a miss and every write is dropped.
type CacheRepository struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. client may be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &CacheRepository{logger: logger}
	if client != nil {
		repo.client = client
	}
	return repo
}

// Get decodes the cached value into dest. Undecodable entries are evicted and
// reported as misses.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, cacheNamespace+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn("evicting undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = r.client.Unlink(ctx, cacheNamespace+key).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set stores value for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	return r.client.Set(ctx, cacheNamespace+key, payload, ttl).Err()
}

// Delete unlinks keys; missing keys are ignored.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if r.client == nil || len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = cacheNamespace + k
	}
	if err := r.client.Unlink(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("redis unlink: %w", err)
	}
	return nil
}
