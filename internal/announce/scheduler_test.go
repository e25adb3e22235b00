package announce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"playerstatus/internal/config"
	logx "playerstatus/pkg/logx"
)

type fakeConfigSource struct {
	mu      sync.Mutex
	cfg     *config.Config
	saves   int
	saveErr error
}

func (f *fakeConfigSource) Get() *config.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// Save mimics the real manager: the new config is committed even when
// the write to disk fails.
func (f *fakeConfigSource) Save(c *config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.cfg = c
	return f.saveErr
}

type fakeSink struct {
	mu      sync.Mutex
	emitted []string
	err     error

	onEmit func() // runs after each emit, outside the lock
}

func (f *fakeSink) Emit(ctx context.Context, text string) error {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.emitted = append(f.emitted, text)
	f.mu.Unlock()
	if f.onEmit != nil {
		f.onEmit()
	}
	return nil
}

func (f *fakeSink) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emitted...)
}

func newTestService(cfg *config.Config) (*Service, *fakeConfigSource, *fakeSink) {
	cfgs := &fakeConfigSource{cfg: cfg}
	sink := &fakeSink{}
	s := New(cfgs, sink, nil, logx.Nop())
	return s, cfgs, sink
}

func schedCfg(msgs ...config.ScheduledMessage) *config.Config {
	return &config.Config{Announce: config.AnnounceConfig{Scheduled: msgs}}
}

func TestMessageDue(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		msg  config.ScheduledMessage
		want bool
	}{
		{
			name: "never sent fires immediately",
			msg:  config.ScheduledMessage{Enabled: true, Text: "hi", IntervalMinutes: 30},
			want: true,
		},
		{
			name: "disabled never fires",
			msg:  config.ScheduledMessage{Enabled: false, Text: "hi", IntervalMinutes: 30},
			want: false,
		},
		{
			name: "blank text never fires",
			msg:  config.ScheduledMessage{Enabled: true, Text: "   ", IntervalMinutes: 30},
			want: false,
		},
		{
			name: "29 of 30 minutes elapsed",
			msg: config.ScheduledMessage{
				Enabled: true, Text: "hi", IntervalMinutes: 30,
				LastSent: config.LastSentAt(now.Add(-29 * time.Minute)),
			},
			want: false,
		},
		{
			name: "exactly 30 minutes elapsed",
			msg: config.ScheduledMessage{
				Enabled: true, Text: "hi", IntervalMinutes: 30,
				LastSent: config.LastSentAt(now.Add(-30 * time.Minute)),
			},
			want: true,
		},
		{
			name: "zero interval never fires",
			msg:  config.ScheduledMessage{Enabled: true, Text: "hi", IntervalMinutes: 0},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := messageDue(tt.msg, now); got != tt.want {
				t.Fatalf("messageDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTickFiresOncePerInterval(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "Server restarts nightly.", IntervalMinutes: 30,
	}))

	s.tick(context.Background(), now)
	if got := sink.lines(); len(got) != 1 || got[0] != "Server restarts nightly." {
		t.Fatalf("emitted = %q, want the message once", got)
	}
	if cfgs.saves != 1 {
		t.Fatalf("saves = %d, want 1", cfgs.saves)
	}
	got := cfgs.Get().Announce.Scheduled[0].LastSent
	if got.IsNever() || !got.Time().Equal(now) {
		t.Fatalf("last_sent = %v, want %v", got.Time(), now)
	}

	// Next minute: not due again.
	s.tick(context.Background(), now.Add(time.Minute))
	if len(sink.lines()) != 1 {
		t.Fatal("message fired again inside its interval")
	}
	if cfgs.saves != 1 {
		t.Fatalf("saves = %d after idle tick, want 1", cfgs.saves)
	}

	// Interval elapsed: due exactly once more.
	s.tick(context.Background(), now.Add(30*time.Minute))
	if len(sink.lines()) != 2 {
		t.Fatalf("emitted = %d, want 2 after the interval elapsed", len(sink.lines()))
	}
}

func TestTickPersistsOncePerFiringTick(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(
		config.ScheduledMessage{Enabled: true, Text: "one", IntervalMinutes: 10},
		config.ScheduledMessage{Enabled: true, Text: "two", IntervalMinutes: 20},
		config.ScheduledMessage{Enabled: false, Text: "off", IntervalMinutes: 5},
	))

	s.tick(context.Background(), now)
	if got := sink.lines(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("emitted = %q, want [one two] in config order", got)
	}
	if cfgs.saves != 1 {
		t.Fatalf("saves = %d, want a single persist for the whole tick", cfgs.saves)
	}
}

func TestTickPersistFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "hi", IntervalMinutes: 30,
	}))
	cfgs.saveErr = errors.New("disk full")

	s.tick(context.Background(), now)
	if len(sink.lines()) != 1 {
		t.Fatal("message did not fire")
	}
	// last_sent advanced despite the failed persist.
	if cfgs.Get().Announce.Scheduled[0].LastSent.IsNever() {
		t.Fatal("persist failure rolled back in-memory last_sent")
	}
	// And the next tick does not re-fire.
	s.tick(context.Background(), now.Add(time.Minute))
	if len(sink.lines()) != 1 {
		t.Fatal("message re-fired after failed persist")
	}
}

func TestTickEmitFailureStillAdvances(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "hi", IntervalMinutes: 30,
	}))
	sink.err = errors.New("feed down")

	// Best-effort sink, no retry: the message still counts as fired.
	s.tick(context.Background(), now)
	if cfgs.Get().Announce.Scheduled[0].LastSent.IsNever() {
		t.Fatal("emit failure held last_sent back")
	}
}

func TestMidTickReloadSurvivesPersist(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "old broadcast", IntervalMinutes: 30,
	}))

	// The operator's reload lands while the tick is emitting, exactly
	// where the watcher's debounce callback can interleave.
	reloaded := schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "new broadcast", IntervalMinutes: 30,
	})
	sink.onEmit = func() { _ = cfgs.Save(reloaded) }

	s.tick(context.Background(), now)

	got := cfgs.Get()
	if len(got.Announce.Scheduled) != 1 || got.Announce.Scheduled[0].Text != "new broadcast" {
		t.Fatalf("live config = %+v, want the reloaded message list", got.Announce.Scheduled)
	}
	// The replaced message was never fired under its new text, so it
	// stays fresh and fires on the next tick.
	if !got.Announce.Scheduled[0].LastSent.IsNever() {
		t.Fatal("replaced message inherited the old message's last_sent")
	}
}

func TestMidTickReloadKeepsAdvancedLastSent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "restart soon", IntervalMinutes: 30,
	}))

	// Reload keeps the firing message and appends a new one.
	reloaded := schedCfg(
		config.ScheduledMessage{Enabled: true, Text: "restart soon", IntervalMinutes: 30},
		config.ScheduledMessage{Enabled: true, Text: "vote for us", IntervalMinutes: 60},
	)
	sink.onEmit = func() { _ = cfgs.Save(reloaded) }

	s.tick(context.Background(), now)

	sch := cfgs.Get().Announce.Scheduled
	if len(sch) != 2 {
		t.Fatalf("scheduled = %d messages, want the reloaded pair", len(sch))
	}
	if sch[0].LastSent.IsNever() || !sch[0].LastSent.Time().Equal(now) {
		t.Fatalf("fired message last_sent = %v, want %v carried into the reload", sch[0].LastSent.Time(), now)
	}
	if !sch[1].LastSent.IsNever() {
		t.Fatal("appended message should still be never-sent")
	}

	// The carried last_sent keeps the fired message quiet next tick while
	// the appended one fires.
	sink.onEmit = nil
	s.tick(context.Background(), now.Add(time.Minute))
	got := sink.lines()
	if len(got) != 2 || got[1] != "vote for us" {
		t.Fatalf("emitted = %q, want only the appended message to fire", got)
	}
}

func TestTickHotReloadPicksUpNewConfig(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, cfgs, sink := newTestService(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "old", IntervalMinutes: 30,
	}))

	s.tick(context.Background(), now)

	// Operator hot-swaps the whole sequence.
	cfgs.Save(schedCfg(config.ScheduledMessage{
		Enabled: true, Text: "new", IntervalMinutes: 30,
	}))

	s.tick(context.Background(), now.Add(time.Minute))
	got := sink.lines()
	if len(got) != 2 || got[1] != "new" {
		t.Fatalf("emitted = %q, want the reloaded message to fire fresh", got)
	}
}
