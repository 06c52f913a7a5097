package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forkful/pantry-service/pkg/metrics"
)

// RedisDB wraps redis.Client with additional functionality
type RedisDB struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRedisDB creates a new Redis client
func NewRedisDB(redisURL string, maxConns int, logger *slog.Logger, metricsCollector *metrics.Metrics) (*RedisDB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = maxConns
	opt.MinIdleConns = 1
	opt.MaxIdleConns = maxConns / 2
	opt.ConnMaxLifetime = time.Hour
	opt.ConnMaxIdleTime = time.Minute * 30
	opt.PoolTimeout = time.Second * 30
	opt.ReadTimeout = time.Second * 10
	opt.WriteTimeout = time.Second * 10

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	rdb := &RedisDB{
		client:  client,
		logger:  logger,
		metrics: metricsCollector,
	}

	if metricsCollector != nil {
		metricsCollector.RedisConnections.Set(float64(maxConns))
		metricsCollector.UpdateDependencyHealth("redis", true)
	}

	logger.Info("Redis connection established",
		"max_conns", maxConns,
		"addr", opt.Addr,
		"db", opt.DB,
	)

	return rdb, nil
}

// Client returns the underlying redis.Client
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Health checks the health of the Redis connection
func (r *RedisDB) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		if r.metrics != nil {
			r.metrics.UpdateDependencyHealth("redis", false)
		}
		return fmt.Errorf("redis health check failed: %w", err)
	}

	if r.metrics != nil {
		r.metrics.UpdateDependencyHealth("redis", true)

		stats := r.client.PoolStats()
		r.metrics.RedisConnections.Set(float64(stats.TotalConns))
	}

	return nil
}

// Close closes the Redis client
func (r *RedisDB) Close() error {
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			return fmt.Errorf("failed to close redis client: %w", err)
		}
	}

	if r.logger != nil {
		r.logger.Info("Redis connection closed")
	}

	if r.metrics != nil {
		r.metrics.RedisConnections.Set(0)
		r.metrics.UpdateDependencyHealth("redis", false)
	}

	return nil
}

// Stats returns Redis connection pool statistics
func (r *RedisDB) Stats() map[string]interface{} {
	if r.client == nil {
		return map[string]interface{}{
			"status": "disconnected",
		}
	}

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"status":      "connected",
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
	}
}
