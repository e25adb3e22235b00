package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	logx "playerstatus/pkg/logx"
)

type fakeRequester struct {
	mu        sync.Mutex
	calls     []int64
	onRequest func(id int64)
}

func (f *fakeRequester) RequestIdentity(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	fn := f.onRequest
	f.mu.Unlock()
	if fn != nil {
		fn(id)
	}
	return nil
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestResolver(req Requester) *Resolver {
	r := NewResolver(req, logx.Nop())
	// Keep tests fast: 200ms bound, 10ms poll.
	r.Apply(Options{LookupTimeout: 200 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	return r
}

func TestResolveCachedHitIssuesNoRequest(t *testing.T) {
	t.Parallel()
	req := &fakeRequester{}
	r := newTestResolver(req)
	r.Cache().Put(42, "Nova")

	id, name := r.ResolvePlayer(context.Background(), map[string]any{"entityId": float64(42)})
	if id != 42 || name != "Nova" {
		t.Fatalf("ResolvePlayer = (%d, %q), want (42, Nova)", id, name)
	}
	if req.callCount() != 0 {
		t.Fatalf("requests = %d, want 0 for a cached id", req.callCount())
	}
}

func TestResolveIdentityBearingShortCircuits(t *testing.T) {
	t.Parallel()
	req := &fakeRequester{}
	r := newTestResolver(req)

	name := r.Resolve(context.Background(), map[string]any{"entityId": float64(7), "playerName": "Vega"})
	if name != "Vega" {
		t.Fatalf("Resolve = %q, want Vega", name)
	}
	if got, ok := r.Cache().Get(7); !ok || got != "Vega" {
		t.Fatalf("cache after short-circuit = (%q, %v), want (Vega, true)", got, ok)
	}
	if req.callCount() != 0 {
		t.Fatalf("requests = %d, want 0", req.callCount())
	}
}

func TestResolveNoIdentifier(t *testing.T) {
	t.Parallel()
	r := newTestResolver(&fakeRequester{})
	if name := r.Resolve(context.Background(), map[string]any{"reason": "restart"}); name != UnknownName {
		t.Fatalf("Resolve = %q, want %q", name, UnknownName)
	}
}

func TestResolvePendingReturnsPlaceholderWithoutSecondRequest(t *testing.T) {
	t.Parallel()
	req := &fakeRequester{}
	r := newTestResolver(req)

	// Simulate a lookup already owned by another resolve.
	if !r.Pending().TryBegin(42) {
		t.Fatal("TryBegin failed")
	}
	defer r.Pending().End(42)

	name := r.Resolve(context.Background(), map[string]any{"entityId": float64(42)})
	if name != "Player_42" {
		t.Fatalf("Resolve = %q, want Player_42", name)
	}
	if req.callCount() != 0 {
		t.Fatalf("requests = %d, want 0 while a lookup is pending", req.callCount())
	}
}

func TestResolveIngestSatisfiesBoundedWait(t *testing.T) {
	t.Parallel()
	r := newTestResolver(nil)
	req := &fakeRequester{onRequest: func(id int64) {
		// Response arrives asynchronously, well inside the bound.
		go func() {
			time.Sleep(30 * time.Millisecond)
			r.Ingest(map[string]any{"entityId": float64(id), "playerName": "Nova"})
		}()
	}}
	r.req = req

	start := time.Now()
	name := r.Resolve(context.Background(), map[string]any{"entityId": float64(42)})
	if name != "Nova" {
		t.Fatalf("Resolve = %q, want Nova", name)
	}
	if took := time.Since(start); took >= 200*time.Millisecond {
		t.Fatalf("resolve waited the full bound (%v) despite early ingest", took)
	}
	if r.Pending().Len() != 0 {
		t.Fatal("pending entry not cleaned up after success")
	}
}

func TestResolveTimeoutClearsPending(t *testing.T) {
	t.Parallel()
	req := &fakeRequester{} // never answers
	r := newTestResolver(req)

	name := r.Resolve(context.Background(), map[string]any{"entityId": float64(42)})
	if name != "Player_42" {
		t.Fatalf("Resolve = %q, want Player_42 after timeout", name)
	}
	if r.Pending().Len() != 0 {
		t.Fatal("pending entry survived the timeout")
	}
	// A later event for the same id gets a fresh attempt.
	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Ingest(map[string]any{"entityId": float64(42), "playerName": "Nova"})
	}()
	if name := r.Resolve(context.Background(), map[string]any{"entityId": float64(42)}); name != "Nova" {
		t.Fatalf("retry Resolve = %q, want Nova", name)
	}
	if req.callCount() != 2 {
		t.Fatalf("requests = %d, want 2 (one per non-pending attempt)", req.callCount())
	}
}

func TestResolveConcurrentDedup(t *testing.T) {
	t.Parallel()
	r := newTestResolver(nil)
	requested := make(chan int64, 1)
	req := &fakeRequester{onRequest: func(id int64) { requested <- id }}
	r.req = req

	payload := map[string]any{"entityId": float64(42)}

	first := make(chan string, 1)
	go func() { first <- r.Resolve(context.Background(), payload) }()

	// Wait until the first resolve owns the lookup.
	select {
	case <-requested:
	case <-time.After(time.Second):
		t.Fatal("first resolve never issued a request")
	}

	// Loser returns the placeholder immediately, without a second request.
	if name := r.Resolve(context.Background(), payload); name != "Player_42" {
		t.Fatalf("concurrent Resolve = %q, want Player_42", name)
	}
	if req.callCount() != 1 {
		t.Fatalf("requests = %d, want 1", req.callCount())
	}

	// Winner gets the real name once the response is ingested.
	r.Ingest(map[string]any{"entityId": float64(42), "playerName": "Nova"})
	select {
	case name := <-first:
		if name != "Nova" {
			t.Fatalf("winner Resolve = %q, want Nova", name)
		}
	case <-time.After(time.Second):
		t.Fatal("winner resolve never returned")
	}
}
