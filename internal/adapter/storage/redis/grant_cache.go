package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// GrantCache implements ports.GrantCache using Redis. It holds the
// response of a completed reward grant under its granter:reference key.
type GrantCache struct {
	client *goredis.Client
	prefix string
}

// NewGrantCache creates a new Redis-backed grant cache.
func NewGrantCache(client *goredis.Client) *GrantCache {
	return &GrantCache{
		client: client,
		prefix: "grant:",
	}
}

// Get returns the cached grant response, or nil if there is none.
func (c *GrantCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis grant cache get: %w", err)
	}
	return val, nil
}

// Set stores a grant response with a TTL.
func (c *GrantCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis grant cache set: %w", err)
	}
	return nil
}
