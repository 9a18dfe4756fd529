// Package cache handles Redis caching operations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Version returns the generation counter stored at key, 0 when unset.
	Version(ctx context.Context, key string) (int64, error)

	// Bump increments the generation counter at key and refreshes its TTL.
	Bump(ctx context.Context, key string, ttl time.Duration) error

	// SetIfVersion stores value at key only while the counter at
	// versionKey still equals version. It reports whether the value was
	// stored.
	SetIfVersion(ctx context.Context, key, versionKey string, version int64, value []byte, ttl time.Duration) (bool, error)

	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a new Redis cache client and verifies connectivity.
func NewRedisCache(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connecting to redis at %s: %w", opts.Addr, err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from the cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value in the cache with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Version returns the generation counter stored at key, 0 when unset.
func (c *RedisCache) Version(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache: version %s: %w", key, err)
	}
	return v, nil
}

// Bump increments the generation counter at key and refreshes its TTL.
func (c *RedisCache) Bump(ctx context.Context, key string, ttl time.Duration) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: bump %s: %w", key, err)
	}
	return nil
}

// setIfVersion compares and sets in one round trip so no Bump can land
// between the check and the write.
var setIfVersion = redis.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// SetIfVersion stores value at key only while the counter at versionKey
// still equals version.
func (c *RedisCache) SetIfVersion(ctx context.Context, key, versionKey string, version int64, value []byte, ttl time.Duration) (bool, error) {
	n, err := setIfVersion.Run(ctx, c.client, []string{key, versionKey},
		strconv.FormatInt(version, 10), value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache: conditional set %s: %w", key, err)
	}
	return n == 1, nil
}

// Ping checks if the cache is healthy.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the cache connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
