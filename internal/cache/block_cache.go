package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlockCache remembers when an active login block ends so repeated checks
// during a block skip the attempt log. Entries expire when the block does.
type BlockCache struct {
	client    *redis.Client
	namespace string
}

func NewBlockCache(client *redis.Client, namespace string) *BlockCache {
	return &BlockCache{client: client, namespace: namespace}
}

func (c *BlockCache) key(username string) string {
	return fmt.Sprintf("%s:login_block:%s", c.namespace, username)
}

// GetBlockedUntil returns nil when no block is cached for username.
func (c *BlockCache) GetBlockedUntil(ctx context.Context, username string) (*time.Time, error) {
	value, err := c.client.Get(ctx, c.key(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blocked until: %w", err)
	}

	until, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("parse blocked until %q: %w", value, err)
	}
	return &until, nil
}

// SetBlockedUntil stores the block end with a TTL of ttl. Non-positive TTLs are ignored.
func (c *BlockCache) SetBlockedUntil(ctx context.Context, username string, until time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(username), until.UTC().Format(time.RFC3339Nano), ttl).Err(); err != nil {
		return fmt.Errorf("set blocked until: %w", err)
	}
	return nil
}
