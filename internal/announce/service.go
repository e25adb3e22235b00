package announce

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"playerstatus/internal/config"
	"playerstatus/internal/storage"
	"playerstatus/internal/transport"
	logx "playerstatus/pkg/logx"
)

// tickSpec is the fixed evaluation cadence. Interval granularity is
// minutes, so a minute tick is exact enough.
const tickSpec = "@every 1m"

// ConfigSource is the slice of the config manager the scheduler needs:
// the live config and the write-back used to persist last_sent.
type ConfigSource interface {
	Get() *config.Config
	Save(*config.Config) error
}

// Service drives both announcement paths: the periodic scheduled
// broadcasts and the per-event welcome/goodbye messages.
type Service struct {
	cfgs  ConfigSource
	sink  transport.Sink
	store storage.Store // nil when history is disabled
	log   logx.Logger

	now func() time.Time // test hook

	runMu sync.Mutex
	c     *cron.Cron
}

func New(cfgs ConfigSource, sink transport.Sink, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfgs:  cfgs,
		sink:  sink,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Start launches the minute tick. Ticks are strictly serialized: if an
// evaluation somehow outlives the interval, the next tick is skipped
// rather than overlapped.
func (s *Service) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(tickSpec, func() { s.tick(context.Background(), s.now()) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Debug("announce scheduler started", logx.String("tick", tickSpec))
	return nil
}

// Stop halts the tick and waits for an in-flight evaluation to finish.
func (s *Service) Stop() {
	s.runMu.Lock()
	c := s.c
	s.c = nil
	s.runMu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
