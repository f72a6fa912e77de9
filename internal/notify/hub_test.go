package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubRecorder struct {
	mu          sync.Mutex
	subscribers int
	published   int
	coalesced   int
	relayed     map[string]int
}

func (s *stubRecorder) SetSubscribers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = n
}

func (s *stubRecorder) IncPublished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
}

func (s *stubRecorder) AddCoalesced(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coalesced += n
}

func (s *stubRecorder) IncRelayed(direction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.relayed == nil {
		s.relayed = map[string]int{}
	}
	s.relayed[direction]++
}

type stubRelay struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *stubRelay) Forward(ctx context.Context, e Event) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *stubRelay) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func receiveWithin(t *testing.T, sub *Subscription, d time.Duration) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return e
	case <-time.After(d):
		t.Fatal("timed out waiting for signal")
	}
	return Event{}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	rec := &stubRecorder{}
	hub := NewHub(nil, rec)
	a, b := hub.Subscribe(), hub.Subscribe()

	hub.Publish(context.Background(), Event{})

	if e := receiveWithin(t, a, time.Second); e.Kind != KindRequestUpdate {
		t.Fatalf("expected default kind, got %q", e.Kind)
	}
	receiveWithin(t, b, time.Second)
	if rec.published != 1 || rec.subscribers != 2 {
		t.Fatalf("unexpected metrics %+v", rec)
	}
}

func TestSlowSubscriberCoalescesWithoutBlocking(t *testing.T) {
	rec := &stubRecorder{}
	hub := NewHub(nil, rec)
	stalled := hub.Subscribe()
	healthy := hub.Subscribe()

	done := make(chan bool, 1)
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(context.Background(), Event{Kind: KindRequestUpdate})
			select {
			case <-healthy.C():
			case <-time.After(time.Second):
				done <- false
				return
			}
		}
		done <- true
	}()

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("healthy subscriber missed a signal")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a stalled subscriber")
	}

	receiveWithin(t, stalled, time.Second)
	select {
	case <-stalled.C():
		t.Fatal("stalled subscriber should hold a single coalesced signal")
	default:
	}
	if rec.coalesced != 99 {
		t.Fatalf("expected 99 coalesced signals, got %d", rec.coalesced)
	}
}

func TestUnsubscribeClosesOnceAndStopsDelivery(t *testing.T) {
	hub := NewHub(nil, nil)
	sub := hub.Subscribe()

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel")
	}
	if hub.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", hub.Len())
	}
	hub.Publish(context.Background(), Event{})
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	hub := NewHub(nil, nil)
	var wg sync.WaitGroup
	var received atomic.Int64

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe()
			for j := 0; j < 50; j++ {
				select {
				case <-sub.C():
					received.Add(1)
				default:
				}
			}
			hub.Unsubscribe(sub)
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(context.Background(), Event{})
			}
		}()
	}
	wg.Wait()

	if hub.Len() != 0 {
		t.Fatalf("expected all subscriptions removed, got %d", hub.Len())
	}
}

func TestPublishForwardsToRelayWithoutBlocking(t *testing.T) {
	relay := &stubRelay{block: make(chan struct{})}
	hub := NewHub(nil, nil)
	hub.SetRelay(relay, time.Second)
	sub := hub.Subscribe()

	start := time.Now()
	hub.Publish(context.Background(), Event{})
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("publish waited on the relay")
	}
	receiveWithin(t, sub, time.Second)

	close(relay.block)
	hub.Wait()
	if relay.count() != 1 {
		t.Fatalf("expected one forwarded event, got %d", relay.count())
	}
}

func TestRelayFailureDoesNotAffectLocalDelivery(t *testing.T) {
	relay := &stubRelay{err: errors.New("redis down")}
	hub := NewHub(nil, nil)
	hub.SetRelay(relay, time.Second)
	sub := hub.Subscribe()

	hub.Publish(context.Background(), Event{})
	hub.Wait()
	receiveWithin(t, sub, time.Second)
}

func TestCloseEndsAllSubscriptions(t *testing.T) {
	hub := NewHub(nil, nil)
	subs := []*Subscription{hub.Subscribe(), hub.Subscribe()}
	hub.Close()
	for _, sub := range subs {
		if _, ok := <-sub.C(); ok {
			t.Fatal("expected subscription closed")
		}
	}
	hub.Unsubscribe(subs[0])
}
