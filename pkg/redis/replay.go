package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency"

// IdempotencyStore is what the replay middleware needs from redis.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	IdempotencyKey(scope, key string) string
}

// IdempotencyKey namespaces a client-supplied key under scope.
func (c *Client) IdempotencyKey(scope, clientKey string) string {
	return key(idempotencyPrefix, scope, clientKey)
}

// Get returns ("", nil) for a missing key.
func (c *Client) Get(ctx context.Context, k string) (string, error) {
	if c.cmd == nil {
		return "", errNotInitialized
	}
	val, err := c.cmd.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// SetNX writes value only when k is absent and reports whether it won.
func (c *Client) SetNX(ctx context.Context, k, value string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, k, value, ttl).Result()
}

func (c *Client) Set(ctx context.Context, k, value string, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Set(ctx, k, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, k string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Del(ctx, k).Err()
}
