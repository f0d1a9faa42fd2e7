package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayCache implements ports.IdempotencyCache. It stores the reply to a
// front-end request id so a redelivered update gets the same answer.
type ReplayCache struct {
	client *goredis.Client
	prefix string
}

// NewReplayCache creates a new Redis-backed replay cache.
func NewReplayCache(client *goredis.Client) *ReplayCache {
	return &ReplayCache{
		client: client,
		prefix: "replay:",
	}
}

// Get returns the stored reply, or nil, nil if there is none.
func (c *ReplayCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis replay get: %w", err)
	}
	return val, nil
}

// Set stores a reply for ttl.
func (c *ReplayCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis replay set: %w", err)
	}
	return nil
}
