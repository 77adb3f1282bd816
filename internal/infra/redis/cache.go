package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Cache stores normalized feed responses with a per-feed TTL.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a new Redis-backed response cache.
func NewCache(cfg Config) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func feedKey(name string) string {
	return fmt.Sprintf("feed_response:%s", name)
}

// GetFeed returns the cached response body for a feed, if present.
func (c *Cache) GetFeed(ctx context.Context, name string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, feedKey(name)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}
	return val, true, nil
}

// SetFeed stores a response body for a feed with the given TTL.
func (c *Cache) SetFeed(ctx context.Context, name string, body []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, feedKey(name), body, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// InvalidateFeed drops the cached response for a feed.
func (c *Cache) InvalidateFeed(ctx context.Context, name string) error {
	return c.rdb.Del(ctx, feedKey(name)).Err()
}
