package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/logflow/caseline/internal/model"
	cerrors "github.com/logflow/caseline/pkg/errors"
)

// RedisConfig configures the Redis result cache.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all keys (e.g., "caseline:results:")
	Prefix string

	// TTL is the time-to-live for result keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "caseline:results:",
		TTL:      24 * time.Hour,
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisCache stores case results as JSON under prefix+namespace+":"+caseID.
type RedisCache struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{cfg: cfg, client: client}, nil
}

func (c *RedisCache) key(namespace, caseID string) string {
	return c.cfg.Prefix + namespace + ":" + caseID
}

// Get retrieves a cached result.
func (c *RedisCache) Get(ctx context.Context, namespace, caseID string) (*model.CaseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(namespace, caseID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, cerrors.Wrap(err, cerrors.CodeCacheFailed, "failed to load result from Redis")
	}

	var result model.CaseResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Put stores a result with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, namespace string, result *model.CaseResult) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, c.key(namespace, result.CaseID), data, c.cfg.TTL).Err(); err != nil {
		return cerrors.Wrap(err, cerrors.CodeCacheFailed, "failed to save result to Redis")
	}
	return nil
}

// Invalidate deletes all keys of a namespace.
func (c *RedisCache) Invalidate(ctx context.Context, namespace string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	pattern := c.cfg.Prefix + namespace + ":*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return cerrors.Wrap(err, cerrors.CodeCacheFailed, "failed to scan Redis keys")
		}

		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, key := range keys {
				pipe.Del(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return cerrors.Wrap(err, cerrors.CodeCacheFailed, "failed to delete Redis keys")
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
