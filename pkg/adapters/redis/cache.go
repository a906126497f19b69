package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.ResponseCache using Redis string keys.
type Cache struct {
	client *backend.Client
	prefix string
}

// NewCache creates a response cache. Keys are stored under prefix + "cache:".
func NewCache(client *backend.Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + "cache:" + k
}

// Get returns the cached response.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache: %w", err)
	}
	return val, true, nil
}

// Set stores a response with the given ttl (0 = no expiry).
func (c *Cache) Set(ctx context.Context, key, response string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), response, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
