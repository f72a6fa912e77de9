package redis

import (
	"context"
	"time"
)

const rateLimitPrefix = "rate_limit"

// RateLimitKey is where the counter for scope lives.
func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}

// FixedWindowAllow counts one hit against scope and reports whether the
// window still has room. The window starts on the first hit; ExpireNX also
// repairs a counter that somehow lost its TTL.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.cmd == nil {
		return false, 0, errNotInitialized
	}
	k := c.RateLimitKey(scope)
	count, err := c.cmd.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if window > 0 {
		if err := c.cmd.ExpireNX(ctx, k, window).Err(); err != nil {
			return false, count, err
		}
	}
	return count <= limit, count, nil
}
