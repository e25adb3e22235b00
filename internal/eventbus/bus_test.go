package eventbus

import (
	"sync"
	"testing"
)

func TestFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(4)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Kind: PlayerConnected, Payload: "p1"})

	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		if ev.Kind != PlayerConnected || ev.Payload != "p1" {
			t.Fatalf("got %+v", ev)
		}
		if ev.Time.IsZero() {
			t.Fatal("Publish did not stamp a time")
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(2)
	defer unsub()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Kind: BulkStatistics, Payload: i})
	}

	// Buffer holds the first two; the rest were dropped without blocking.
	if got := len(ch); got != 2 {
		t.Fatalf("buffered = %d, want 2", got)
	}
	first := <-ch
	if first.Payload != 0 {
		t.Fatalf("first = %v, want oldest event", first.Payload)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	unsub()
	unsub() // idempotent

	// Channel is closed and no longer receives publishes.
	b.Publish(Event{Kind: PlayerDisconnected})
	if _, ok := <-ch; ok {
		t.Fatal("received event after unsubscribe")
	}
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		ch, unsub := b.Subscribe(1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		go func() {
			defer wg.Done()
			unsub()
		}()
	}
	for i := 0; i < 100; i++ {
		b.Publish(Event{Kind: IdentityResponse, Payload: i})
	}
	wg.Wait()
}
