package identity

import (
	"sync"
	"time"
)

// Pending records ids with an outbound lookup currently in flight, so a
// second resolve for the same id never issues a second request.
//
// The tracker is advisory dedup state only: it enforces no timeout
// itself (the resolver's bounded wait does), and a crash mid-lookup
// leaves a stale entry only for that wait's lifetime.
type Pending struct {
	mu       sync.Mutex
	inflight map[int64]time.Time
}

func NewPending() *Pending {
	return &Pending{inflight: map[int64]time.Time{}}
}

// TryBegin atomically records id as in-flight. It returns false when a
// lookup for id is already pending; the caller must not issue a request.
func (p *Pending) TryBegin(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inflight[id]; exists {
		return false
	}
	p.inflight[id] = time.Now()
	return true
}

// End removes the in-flight record. Idempotent.
func (p *Pending) End(id int64) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

// RequestedAt returns when the in-flight lookup for id was begun.
func (p *Pending) RequestedAt(id int64) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.inflight[id]
	return at, ok
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}
