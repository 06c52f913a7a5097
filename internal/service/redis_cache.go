package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/forkful/pantry-service/internal/database"
)

// redisCache implements CacheInterface on top of the shared Redis client
type redisCache struct {
	redis *database.RedisDB
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(rdb *database.RedisDB) CacheInterface {
	return &redisCache{redis: rdb}
}

// ErrCacheMiss indicates the key is not present or expired
var ErrCacheMiss = errors.New("cache miss")

// Get retrieves a JSON value from cache
func (c *redisCache) Get(ctx context.Context, key string, value interface{}) error {
	data, err := c.redis.Client().Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get from cache")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cache value")
	}
	return nil
}

// Set stores a JSON value in cache with TTL
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache value")
	}

	if err := c.redis.Client().Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set cache value")
	}
	return nil
}

// Delete removes a value from cache
func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Client().Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to delete from cache")
	}
	return nil
}

// DeletePattern removes all keys matching a pattern using SCAN
func (c *redisCache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	var keys []string

	for {
		var err error
		var batch []string
		batch, cursor, err = c.redis.Client().Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return errors.Wrap(err, "failed to scan keys")
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	batchSize := 1000
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.redis.Client().Del(ctx, keys[i:end]...).Err(); err != nil {
			return errors.Wrap(err, "failed to delete keys")
		}
	}

	return nil
}
