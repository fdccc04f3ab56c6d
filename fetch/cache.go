package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wudi/pdfcombine/source"
)

// Cache stores downloaded bodies across runs.
type Cache interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Set(ctx context.Context, url string, data []byte) error
}

const keyPrefix = "pdfcombine:fetch:"

// RedisCache is a Cache backed by Redis with a fixed TTL.
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache creates a response cache. ttl <= 0 disables writes.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisCache{redis: client, ttl: ttl}
}

// Key returns the Redis key used for rawURL. URLs with the same normalized
// form share a key; unparsable ones are keyed as given.
func Key(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if s, err := source.NormalizeURL(u); err == nil {
			return keyPrefix + s
		}
	}
	return keyPrefix + rawURL
}

func (c *RedisCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	data, err := c.redis.Get(ctx, Key(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, url string, data []byte) error {
	if c.ttl <= 0 {
		return nil
	}
	if err := c.redis.Set(ctx, Key(url), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
