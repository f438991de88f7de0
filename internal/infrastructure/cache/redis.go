package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercata-core-vendor-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the optional distributed cache tier, shared across processes.
// Redis enforces the TTL natively.
type RedisTier struct {
	client *redis.Client
	prefix string
}

// NewRedisTier creates a tier over an existing Redis client.
func NewRedisTier(client *redis.Client, prefix string) *RedisTier {
	return &RedisTier{client: client, prefix: prefix}
}

var _ ports.CacheTier = (*RedisTier)(nil)

func (t *RedisTier) Name() string { return "redis" }

func (t *RedisTier) key(key string) string { return t.prefix + ":" + key }

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := t.client.Get(ctx, t.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, t.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
