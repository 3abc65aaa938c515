// Package redis implements core.ViewCache on Redis. Keys carry the document
// epoch and revision, so entries never need explicit invalidation and simply
// expire.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL applies when Options.TTL is zero.
const DefaultTTL = 10 * time.Minute

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	// Prefix namespaces every key (default "probikes:").
	Prefix string
}

// Cache stores rendered views.
type Cache struct {
	client goredis.Cmdable
	ttl    time.Duration
	prefix string
	closer func() error
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	c := New(client, opts.TTL, opts.Prefix)
	c.closer = client.Close
	return c, nil
}

// New wraps an existing client.
func New(client goredis.Cmdable, ttl time.Duration, prefix string) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "probikes:"
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// Get returns the cached value; a miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, true, nil
}

// Set stores value under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes a connection opened by Open.
func (c *Cache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
