// Package app wires the service together: config, logging, storage,
// the event feed, the identity resolver and the announcer.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"playerstatus/internal/announce"
	"playerstatus/internal/config"
	"playerstatus/internal/eventbus"
	"playerstatus/internal/identity"
	"playerstatus/internal/storage"
	"playerstatus/internal/transport"
	"playerstatus/internal/transport/feed"
	"playerstatus/internal/transport/telegram"
	logx "playerstatus/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus      eventbus.Bus
	feed     *feed.Feed
	resolver *identity.Resolver
	ann      *announce.Service
	mirror   *telegram.Mirror // nil unless configured
	store    storage.Store    // nil when disabled

	// lastCfg is only touched from the reload goroutine (diff logging).
	lastCfg *config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if errors.Is(err, os.ErrNotExist) {
		// First run: write a default the operator can edit live.
		cfg = defaultConfig()
		if err := cfgm.Save(cfg); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logs, log := logx.New(logConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))
	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	var store storage.Store
	if cfg.Storage != nil {
		busy, _ := cfg.Storage.BusyWait()
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, logs.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			// History is advisory; run without it.
			log.Warn("storage unavailable; history disabled", logx.Err(err))
			store = nil
		}
	}

	bus := eventbus.New()
	fd := feed.New(feed.Config{
		Network: cfg.Feed.Network,
		Addr:    cfg.Feed.Addr,
	}, bus, logs.Logger().With(logx.String("comp", "feed")))

	resolver := identity.NewResolver(fd, logs.Logger().With(logx.String("comp", "identity")))
	resolver.Apply(resolverOptions(cfg))

	var mirror *telegram.Mirror
	sink := transport.Sink(fd)
	if tg := cfg.Telegram; tg != nil && tg.Enabled {
		mirror, err = telegram.New(telegram.Config{
			Token:      tg.Token,
			ChatID:     tg.ChatID,
			RatePerSec: tg.RatePerSec,
		}, logs.Logger().With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram mirror: %w", err)
		}
		sink = transport.MultiSink{fd, mirror}
	}

	ann := announce.New(cfgm, sink, store, logs.Logger().With(logx.String("comp", "announce")))

	return &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log,
		bus:      bus,
		feed:     fd,
		resolver: resolver,
		ann:      ann,
		mirror:   mirror,
		store:    store,
		lastCfg:  cfg,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.mirror != nil {
		a.mirror.Start()
	}

	// Config watch + reload application.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(ctx)
	}()

	reloads := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(reloads)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	// Event dispatch. Connect/disconnect handling is spawned per event so
	// one blocked resolve never stalls ingestion of the response that
	// would unblock it.
	events, unsub := a.bus.Subscribe(256)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.dispatch(ctx, ev)
			}
		}
	}()

	// Feed reader.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.feed.Run(ctx)
	}()

	if err := a.ann.Start(); err != nil {
		cancel()
		return err
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("playerstatus started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cancel != nil {
		a.cancel()
	}
	a.ann.Stop()
	if a.mirror != nil {
		a.mirror.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timed out; exiting anyway")
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("playerstatus stopped")
	return a.logs.Close()
}

func (a *App) dispatch(ctx context.Context, ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.IdentityResponse, eventbus.BulkStatistics:
		// The only writers that can satisfy a pending lookup; handled
		// inline so they are never queued behind a blocked resolve.
		a.resolver.Ingest(ev.Payload)
	case eventbus.PlayerConnected:
		go func() {
			id, name := a.resolver.ResolvePlayer(ctx, ev.Payload)
			a.ann.PlayerJoined(ctx, id, name)
		}()
	case eventbus.PlayerDisconnected:
		go func() {
			id, name := a.resolver.ResolvePlayer(ctx, ev.Payload)
			a.ann.PlayerLeft(ctx, id, name)
		}()
	default:
		// Opportunistic: unknown payloads may still carry identities.
		a.resolver.Ingest(ev.Payload)
	}
}

func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	changed, attrs := config.SummarizeChange(a.lastCfg, cfg)
	a.lastCfg = cfg
	if len(changed) == 0 {
		return
	}

	a.logs.Apply(logConfig(cfg))
	a.resolver.Apply(resolverOptions(cfg))
	if a.mirror != nil && cfg.Telegram != nil {
		a.mirror.Apply(cfg.Telegram.RatePerSec)
	}
	// The announcer reads the live config each tick; nothing to apply.

	fields := append([]logx.Field{logx.Any("sections", changed)}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func resolverOptions(cfg *config.Config) identity.Options {
	// Validate already rejected malformed durations.
	timeout, poll, _ := cfg.Resolver.Timeouts()
	return identity.Options{LookupTimeout: timeout, PollInterval: poll}
}

func defaultConfig() *config.Config {
	return &config.Config{
		Logging: config.LoggingConfig{Level: "INFO", Console: true},
		Resolver: config.ResolverConfig{
			LookupTimeout: "5s",
			PollInterval:  "250ms",
		},
		Announce: config.AnnounceConfig{
			WelcomeEnabled:  true,
			GoodbyeEnabled:  true,
			WelcomeTemplate: "Welcome to the galaxy, {playername}!",
			GoodbyeTemplate: "{playername} has left the galaxy.",
		},
	}
}
