// Package cache persists reconciled state maps to Redis so a restarted
// gateway can render a best-effort view before its live session connects.
package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements mesh.StateCache over one Redis hash per state map.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func stateKey(kind string) string {
	return "mesh:state:" + kind
}

// Store overwrites one entry of a state map.
func (c *RedisCache) Store(ctx context.Context, kind, key string, value []byte) error {
	return c.client.HSet(ctx, stateKey(kind), key, value).Err()
}

// Remove deletes one entry of a state map.
func (c *RedisCache) Remove(ctx context.Context, kind, key string) error {
	return c.client.HDel(ctx, stateKey(kind), key).Err()
}

// Load returns the full persisted state map.
func (c *RedisCache) Load(ctx context.Context, kind string) (map[string][]byte, error) {
	entries, err := c.client.HGetAll(ctx, stateKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for key, value := range entries {
		out[key] = []byte(value)
	}
	return out, nil
}
