package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/licensedesk/pkg/logger"
)

const (
	relayRetryMin = 500 * time.Millisecond
	relayRetryMax = 30 * time.Second
)

type broker interface {
	Publish(ctx context.Context, channel, payload string) error
	Listen(ctx context.Context, channel string) (<-chan string, error)
}

type relayRecorder interface {
	IncRelayed(direction string)
}

type envelope struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
}

// RedisRelay fans hub events out to every instance sharing a pub/sub channel.
type RedisRelay struct {
	broker  broker
	channel string
	origin  string
	hub     *Hub
	metrics relayRecorder
	logg    *logger.Logger
}

func NewRedisRelay(b broker, channel, origin string, hub *Hub, metrics relayRecorder, logg *logger.Logger) (*RedisRelay, error) {
	if b == nil {
		return nil, fmt.Errorf("relay broker required")
	}
	if channel == "" {
		return nil, fmt.Errorf("relay channel required")
	}
	if origin == "" {
		return nil, fmt.Errorf("relay origin required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	return &RedisRelay{
		broker:  b,
		channel: channel,
		origin:  origin,
		hub:     hub,
		metrics: metrics,
		logg:    logg,
	}, nil
}

// Forward publishes e tagged with this instance's origin.
func (r *RedisRelay) Forward(ctx context.Context, e Event) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, Kind: e.Kind})
	if err != nil {
		return err
	}
	if err := r.broker.Publish(ctx, r.channel, string(payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	r.record("outbound")
	return nil
}

// Run delivers events from other instances into the local hub until ctx
// ends. Subscription failures are logged and retried with backoff.
func (r *RedisRelay) Run(ctx context.Context) error {
	backoff := relayRetryMin
	for {
		msgs, err := r.broker.Listen(ctx, r.channel)
		if err == nil {
			backoff = relayRetryMin
			r.consume(ctx, msgs)
		} else if ctx.Err() == nil {
			r.warn(ctx, "bus relay subscribe failed", err)
		}

		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > relayRetryMax {
			backoff = relayRetryMax
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context, msgs <-chan string) {
	for payload := range msgs {
		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			r.warn(ctx, "bus relay dropped malformed message", err)
			continue
		}
		if env.Origin == r.origin {
			continue
		}
		if env.Kind == "" {
			env.Kind = KindRequestUpdate
		}
		r.hub.Deliver(Event{Kind: env.Kind})
		r.record("inbound")
	}
}

func (r *RedisRelay) record(direction string) {
	if r.metrics != nil {
		r.metrics.IncRelayed(direction)
	}
}

func (r *RedisRelay) warn(ctx context.Context, msg string, err error) {
	if r.logg == nil {
		return
	}
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"channel": r.channel, "error": err.Error()}), msg)
}
