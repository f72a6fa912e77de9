package redis

import (
	"context"
	"fmt"
)

func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Publish(ctx, channel, payload).Err()
}

// Listen streams payloads published on channel until ctx ends or the
// subscription drops. The returned channel is closed in both cases.
func (c *Client) Listen(ctx context.Context, channel string) (<-chan string, error) {
	if c.sub == nil {
		return nil, errNotInitialized
	}
	ps := c.sub.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			var payload string
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				payload = msg.Payload
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
