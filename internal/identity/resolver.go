package identity

import (
	"context"
	"sync"
	"time"

	logx "playerstatus/pkg/logx"
)

// Requester issues the outbound identity lookup. Fire-and-forget: the
// response arrives later on the event feed as an IdentityResponse,
// correlated only by id.
type Requester interface {
	RequestIdentity(ctx context.Context, id int64) error
}

// Options tunes the bounded wait. Zero fields fall back to defaults.
type Options struct {
	LookupTimeout time.Duration // default 5s
	PollInterval  time.Duration // default 250ms
}

const (
	defaultLookupTimeout = 5 * time.Second
	defaultPollInterval  = 250 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = defaultLookupTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// Resolver orchestrates extraction → cache → dedup → request → bounded
// wait → fallback. Resolve never fails; it always returns a usable
// string.
type Resolver struct {
	extract *Extractor
	cache   *Cache
	pending *Pending
	req     Requester
	log     logx.Logger

	mu  sync.Mutex
	opt Options
}

func NewResolver(req Requester, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{
		extract: NewExtractor(),
		cache:   NewCache(),
		pending: NewPending(),
		req:     req,
		log:     log,
		opt:     Options{}.withDefaults(),
	}
}

// Apply hot-swaps the wait tuning. Safe to call concurrently with Resolve.
func (r *Resolver) Apply(opt Options) {
	opt = opt.withDefaults()
	r.mu.Lock()
	r.opt = opt
	r.mu.Unlock()
}

func (r *Resolver) options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opt
}

// Cache exposes the underlying cache (the ingest path and tests write
// through it).
func (r *Resolver) Cache() *Cache { return r.cache }

// Pending exposes the dedup tracker (ops/tests only).
func (r *Resolver) Pending() *Pending { return r.pending }

// Resolve returns the player name for the event payload. See ResolvePlayer.
func (r *Resolver) Resolve(ctx context.Context, payload any) string {
	_, name := r.ResolvePlayer(ctx, payload)
	return name
}

// ResolvePlayer returns the extracted player id (0 when none) and name
// for the event payload.
//
// Outcomes, in order:
//   - payload already names its player: cache and return that name
//   - no id extractable: the unknown sentinel
//   - cached id: the cached name
//   - lookup already in flight: the placeholder, immediately
//   - otherwise: request, wait up to the lookup timeout for the ingest
//     path to populate the cache, then the name or the placeholder
func (r *Resolver) ResolvePlayer(ctx context.Context, payload any) (int64, string) {
	if id, name, ok := r.extract.ExtractIdentity(payload); ok {
		r.cache.Put(id, name)
		return id, name
	}

	id, ok := r.extract.Extract(payload)
	if !ok {
		return 0, UnknownName
	}

	if name, ok := r.cache.Get(id); ok {
		return id, name
	}

	if !r.pending.TryBegin(id) {
		// Another resolve owns the lookup; don't wait on its behalf.
		return id, PlaceholderName(id)
	}
	defer r.pending.End(id)

	if r.req == nil {
		return id, PlaceholderName(id)
	}
	if err := r.req.RequestIdentity(ctx, id); err != nil {
		r.log.Warn("identity request failed", logx.Int64("player_id", id), logx.Err(err))
		return id, PlaceholderName(id)
	}

	opt := r.options()
	if name, ok := r.awaitCache(ctx, id, opt); ok {
		return id, name
	}
	r.log.Debug("identity lookup timed out",
		logx.Int64("player_id", id),
		logx.Duration("timeout", opt.LookupTimeout),
	)
	return id, PlaceholderName(id)
}

// awaitCache polls the cache for id until it is populated by the ingest
// path, the timeout elapses, or ctx is cancelled. Only the calling
// goroutine blocks; concurrent resolves for other ids are unaffected.
func (r *Resolver) awaitCache(ctx context.Context, id int64, opt Options) (string, bool) {
	deadline := time.NewTimer(opt.LookupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(opt.PollInterval)
	defer tick.Stop()

	for {
		if name, ok := r.cache.Get(id); ok {
			return name, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			return "", false
		case <-tick.C:
		}
	}
}
