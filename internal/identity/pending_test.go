package identity

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPendingTryBeginEnd(t *testing.T) {
	t.Parallel()
	p := NewPending()

	if !p.TryBegin(42) {
		t.Fatal("first TryBegin should win")
	}
	if p.TryBegin(42) {
		t.Fatal("second TryBegin for the same id should lose")
	}
	if _, ok := p.RequestedAt(42); !ok {
		t.Fatal("RequestedAt should report the in-flight entry")
	}

	p.End(42)
	p.End(42) // idempotent
	if p.Len() != 0 {
		t.Fatalf("Len = %d after End, want 0", p.Len())
	}
	if !p.TryBegin(42) {
		t.Fatal("TryBegin should win again after End")
	}
}

func TestPendingSingleWinnerUnderContention(t *testing.T) {
	t.Parallel()
	p := NewPending()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.TryBegin(7) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins.Load())
	}
}
