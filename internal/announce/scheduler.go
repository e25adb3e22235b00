package announce

import (
	"context"
	"strings"
	"time"

	"playerstatus/internal/config"
	"playerstatus/internal/storage"
	logx "playerstatus/pkg/logx"
)

// tick evaluates every scheduled message against now.
//
// A message is due when it is enabled, has text, and either has never
// been sent or its interval has fully elapsed. Due messages are emitted
// verbatim and their last_sent advances to now; emission failure is
// reported but does not hold the message back (best-effort sink, no
// retry). If anything fired, the config is persisted exactly once.
func (s *Service) tick(ctx context.Context, now time.Time) {
	cur := s.cfgs.Get()
	if cur == nil || len(cur.Announce.Scheduled) == 0 {
		return
	}

	// Work on a copy: the live config is immutable once committed, and
	// readers must never observe a half-updated message list.
	sch := make([]config.ScheduledMessage, len(cur.Announce.Scheduled))
	copy(sch, cur.Announce.Scheduled)

	fired := 0
	for i := range sch {
		m := &sch[i]
		if !messageDue(*m, now) {
			continue
		}
		if err := s.sink.Emit(ctx, m.Text); err != nil {
			s.log.Warn("scheduled announcement emit failed", logx.Int("index", i), logx.Err(err))
		} else {
			s.log.Info("scheduled announcement sent",
				logx.Int("index", i),
				logx.Int("interval_min", m.IntervalMinutes),
			)
		}
		m.LastSent = config.LastSentAt(now)
		fired++
		s.record(ctx, storage.AnnounceRecord{At: now, Kind: "scheduled", Text: m.Text})
	}

	if fired == 0 {
		return
	}

	// The config may have been hot-reloaded while this tick was emitting.
	// Persisting the tick's snapshot would silently revert that reload,
	// so re-read the live config and carry only the advanced last_sent
	// values into it.
	live := s.cfgs.Get()
	next := *live
	if live == cur {
		next.Announce.Scheduled = sch
	} else {
		next.Announce.Scheduled = carryLastSent(live.Announce.Scheduled, sch)
	}
	if err := s.cfgs.Save(&next); err != nil {
		// In-memory last_sent already advanced; worst case a restart
		// inside this interval fires once more.
		s.log.Error("announce state persist failed", logx.Int("fired", fired), logx.Err(err))
		return
	}
	s.log.Debug("announce state persisted", logx.Int("fired", fired))
}

// carryLastSent merges the tick's advanced last_sent values into a
// scheduled list that was hot-reloaded mid-tick. Messages are matched
// by text; an edited or newly added message keeps its reloaded state
// and fires on its own terms.
func carryLastSent(live, ticked []config.ScheduledMessage) []config.ScheduledMessage {
	out := make([]config.ScheduledMessage, len(live))
	copy(out, live)
	for i := range out {
		for _, t := range ticked {
			if t.Text != out[i].Text || t.LastSent.IsNever() {
				continue
			}
			if out[i].LastSent.IsNever() || t.LastSent.Time().After(out[i].LastSent.Time()) {
				out[i].LastSent = t.LastSent
			}
			break
		}
	}
	return out
}

// messageDue applies the Idle→Due transition rule.
func messageDue(m config.ScheduledMessage, now time.Time) bool {
	if !m.Enabled || strings.TrimSpace(m.Text) == "" {
		return false
	}
	if m.IntervalMinutes <= 0 {
		return false
	}
	if m.LastSent.IsNever() {
		return true
	}
	interval := time.Duration(m.IntervalMinutes) * time.Minute
	return now.Sub(m.LastSent.Time()) >= interval
}

func (s *Service) record(ctx context.Context, r storage.AnnounceRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendAnnounce(ctx, r); err != nil {
		s.log.Debug("announce history write failed", logx.Err(err))
	}
}
