// Package feed speaks the game server companion protocol: newline-
// delimited JSON in both directions over a socket or a stdio pipe.
//
// Inbound lines are {"event":"<kind>","data":{...}} and are published
// on the event bus. Outbound lines are either chat
// ({"say":"..."}) or identity lookups ({"request":"identity",...}).
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"playerstatus/internal/eventbus"
	logx "playerstatus/pkg/logx"
)

type Config struct {
	Network string // "unix" or "tcp"; empty means stdio pipe mode
	Addr    string
}

// PlayerEvent is the payload of connect/disconnect/identity lines.
// Name is frequently empty on connect events; that is the whole reason
// the resolver exists.
type PlayerEvent struct {
	EntityID int64  `json:"entityId,omitempty"`
	SteamID  int64  `json:"steamId,omitempty"`
	Name     string `json:"playerName,omitempty"`
}

func (e PlayerEvent) PlayerID() int64 {
	if e.EntityID > 0 {
		return e.EntityID
	}
	return e.SteamID
}

func (e PlayerEvent) PlayerName() string { return e.Name }

// Feed owns the companion connection. It implements transport.Sink and
// identity.Requester on the write side and publishes inbound events on
// the bus.
type Feed struct {
	cfg Config
	bus eventbus.Bus
	log logx.Logger

	wmu sync.Mutex
	w   io.Writer
}

var errNotConnected = errors.New("feed: not connected")

func New(cfg Config, bus eventbus.Bus, log logx.Logger) *Feed {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Feed{cfg: cfg, bus: bus, log: log}
}

// Run reads the feed until ctx is cancelled, reconnecting with backoff
// in socket mode. In pipe mode it consumes stdin once and returns on EOF.
func (f *Feed) Run(ctx context.Context) error {
	if strings.TrimSpace(f.cfg.Addr) == "" {
		f.setWriter(os.Stdout)
		f.readLoop(ctx, os.Stdin)
		return nil
	}

	network := strings.ToLower(strings.TrimSpace(f.cfg.Network))
	if network == "" {
		network = "unix"
	}

	const (
		backoffBase = 500 * time.Millisecond
		backoffMax  = 15 * time.Second
	)
	backoff := backoffBase
	for {
		if ctx.Err() != nil {
			return nil
		}
		d := net.Dialer{Timeout: 5 * time.Second}
		conn, err := d.DialContext(ctx, network, f.cfg.Addr)
		if err != nil {
			f.log.Warn("feed dial failed", logx.String("addr", f.cfg.Addr), logx.Err(err), logx.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < backoffMax {
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
			}
			continue
		}
		backoff = backoffBase
		f.log.Info("feed connected", logx.String("addr", f.cfg.Addr))
		f.setWriter(conn)

		// Close the connection when ctx ends so the read loop unblocks.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		f.readLoop(ctx, conn)
		close(done)
		f.setWriter(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		f.log.Warn("feed disconnected; reconnecting", logx.String("addr", f.cfg.Addr))
	}
}

func (f *Feed) setWriter(w io.Writer) {
	f.wmu.Lock()
	f.w = w
	f.wmu.Unlock()
}

func (f *Feed) readLoop(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f.handleLine(line)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		f.log.Warn("feed read error", logx.Err(err))
	}
}

type inboundLine struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (f *Feed) handleLine(line string) {
	var in inboundLine
	if err := json.Unmarshal([]byte(line), &in); err != nil {
		f.log.Debug("feed line skipped (not an event)", logx.Err(err))
		return
	}
	if strings.TrimSpace(in.Event) == "" {
		return
	}

	kind := eventbus.Kind(in.Event)
	payload := decodePayload(kind, in.Data)
	f.bus.Publish(eventbus.Event{Kind: kind, Payload: payload})
}

// decodePayload gives the known kinds their typed shape; everything else
// stays a generic map for the extractor to probe.
func decodePayload(kind eventbus.Kind, data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}
	switch kind {
	case eventbus.PlayerConnected, eventbus.PlayerDisconnected, eventbus.IdentityResponse:
		var pe PlayerEvent
		if err := json.Unmarshal(data, &pe); err == nil && pe.PlayerID() > 0 {
			return pe
		}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// ---- outbound ----

type sayLine struct {
	Say string `json:"say"`
}

type requestLine struct {
	Request string `json:"request"`
	SteamID int64  `json:"steamId"`
}

// Emit writes one chat line. Best-effort per the sink contract.
func (f *Feed) Emit(ctx context.Context, text string) error {
	return f.writeLine(ctx, sayLine{Say: text})
}

// RequestIdentity issues a fire-and-forget lookup for id. The response,
// if any, arrives later as an IdentityResponse event.
func (f *Feed) RequestIdentity(ctx context.Context, id int64) error {
	return f.writeLine(ctx, requestLine{Request: "identity", SteamID: id})
}

func (f *Feed) writeLine(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	f.wmu.Lock()
	defer f.wmu.Unlock()
	if f.w == nil {
		return errNotConnected
	}
	_, err = f.w.Write(b)
	return err
}
