package notify

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/licensedesk/pkg/logger"
)

// KindRequestUpdate tells viewers that some license request changed and
// they should re-fetch the list.
const KindRequestUpdate = "request_update"

const defaultRelayTimeout = 2 * time.Second

// Event is a content-free change signal.
type Event struct {
	Kind string `json:"kind"`
}

// Subscription is one viewer's registration with the hub. C holds at most
// one pending signal; further publishes coalesce into it until it is read.
type Subscription struct {
	ch   chan Event
	once sync.Once
}

// C returns the receive side. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Relay forwards locally published events to other instances.
type Relay interface {
	Forward(ctx context.Context, e Event) error
}

type busRecorder interface {
	SetSubscribers(n int)
	IncPublished()
	AddCoalesced(n int)
}

// Hub is the in-process subscriber registry.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	relay        Relay
	relayTimeout time.Duration

	metrics busRecorder
	logg    *logger.Logger
	wg      sync.WaitGroup
}

func NewHub(logg *logger.Logger, metrics busRecorder) *Hub {
	return &Hub{
		subs:         make(map[*Subscription]struct{}),
		relayTimeout: defaultRelayTimeout,
		metrics:      metrics,
		logg:         logg,
	}
}

// SetRelay attaches a cross-instance relay. Call before serving traffic.
func (h *Hub) SetRelay(r Relay, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = r
	if timeout > 0 {
		h.relayTimeout = timeout
	}
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, 1)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.recordSubscribers(n)
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	delete(h.subs, sub)
	sub.close()
	n := len(h.subs)
	h.mu.Unlock()
	h.recordSubscribers(n)
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish signals every local subscriber and hands the event to the relay.
// It never blocks on subscribers or on the relay.
func (h *Hub) Publish(ctx context.Context, e Event) {
	if e.Kind == "" {
		e.Kind = KindRequestUpdate
	}
	h.Deliver(e)
	if h.metrics != nil {
		h.metrics.IncPublished()
	}

	h.mu.RLock()
	relay, timeout := h.relay, h.relayTimeout
	h.mu.RUnlock()
	if relay == nil {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := relay.Forward(fctx, e); err != nil && h.logg != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "bus relay forward failed")
		}
	}()
}

// Deliver signals local subscribers only and returns how many signals
// were coalesced into an already pending one. Sends are non-blocking and
// happen under the read lock so Unsubscribe cannot close a channel mid-send.
func (h *Hub) Deliver(e Event) int {
	coalesced := 0
	h.mu.RLock()
	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			coalesced++
		}
	}
	h.mu.RUnlock()

	if coalesced > 0 && h.metrics != nil {
		h.metrics.AddCoalesced(coalesced)
	}
	return coalesced
}

// Wait blocks until in-flight relay forwards finish.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Close unsubscribes everyone, which ends every viewer session.
func (h *Hub) Close() {
	h.mu.Lock()
	for sub := range h.subs {
		sub.close()
	}
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()
	h.recordSubscribers(0)
	h.wg.Wait()
}

func (h *Hub) recordSubscribers(n int) {
	if h.metrics != nil {
		h.metrics.SetSubscribers(n)
	}
}
