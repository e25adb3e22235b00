// Package telegram mirrors announcements to an admin chat.
//
// The mirror is strictly one-way and advisory: emits are queued without
// blocking, rate-limited, and dropped when the queue is full. The game
// chat sink never waits on Telegram.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "playerstatus/pkg/logx"
)

type Config struct {
	Token      string
	ChatID     int64
	RatePerSec int // default 1
}

type Mirror struct {
	bot  *tele.Bot
	chat *tele.Chat
	log  logx.Logger

	queue chan string

	mu      sync.Mutex
	limiter *rate.Limiter

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// No poller: the mirror only sends.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Mirror{
		bot:     b,
		chat:    &tele.Chat{ID: cfg.ChatID},
		log:     log,
		queue:   make(chan string, 64),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Apply hot-swaps the rate limit.
func (m *Mirror) Apply(ratePerSec int) {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	m.mu.Lock()
	m.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	m.mu.Unlock()
}

// Start launches the send worker. Idempotent.
func (m *Mirror) Start() {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.worker(ctx)
		}()
	})
}

func (m *Mirror) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
}

// Emit enqueues text for mirroring. Never blocks; a full queue drops the
// message (the primary sink already delivered it in-game).
func (m *Mirror) Emit(ctx context.Context, text string) error {
	_ = ctx
	select {
	case m.queue <- text:
		return nil
	default:
		m.log.Debug("telegram mirror queue full; dropping", logx.Int("queue_cap", cap(m.queue)))
		return nil
	}
}

func (m *Mirror) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-m.queue:
			m.mu.Lock()
			lim := m.limiter
			m.mu.Unlock()
			if err := lim.Wait(ctx); err != nil {
				return
			}
			start := time.Now()
			if _, err := m.bot.Send(m.chat, text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
				m.log.Warn("telegram mirror send failed", logx.Err(err), logx.Duration("took", time.Since(start)))
			}
		}
	}
}
