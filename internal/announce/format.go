package announce

import (
	"context"
	"strings"

	"playerstatus/internal/identity"
	"playerstatus/internal/storage"
	logx "playerstatus/pkg/logx"
)

// playerToken is the substitution marker operators use in templates.
const playerToken = "{playername}"

// RenderTemplate substitutes the player name into a template. The token
// match is case-insensitive so "{PlayerName}" works too.
func RenderTemplate(tpl, name string) string {
	var b strings.Builder
	rest := tpl
	for {
		idx := strings.Index(strings.ToLower(rest), playerToken)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:idx])
		b.WriteString(name)
		rest = rest[idx+len(playerToken):]
	}
}

// PlayerJoined handles a resolved connect event: records the session
// and, when allowed, emits the welcome announcement.
func (s *Service) PlayerJoined(ctx context.Context, id int64, name string) {
	s.session(ctx, id, name, "join")
	cfg := s.cfgs.Get()
	if cfg == nil || !cfg.Announce.WelcomeEnabled {
		return
	}
	s.announcePlayer(ctx, id, name, "welcome", cfg.Announce.WelcomeTemplate)
}

// PlayerLeft handles a resolved disconnect event.
func (s *Service) PlayerLeft(ctx context.Context, id int64, name string) {
	s.session(ctx, id, name, "leave")
	cfg := s.cfgs.Get()
	if cfg == nil || !cfg.Announce.GoodbyeEnabled {
		return
	}
	s.announcePlayer(ctx, id, name, "goodbye", cfg.Announce.GoodbyeTemplate)
}

func (s *Service) announcePlayer(ctx context.Context, id int64, name, kind, tpl string) {
	// A placeholder means "resolution still in progress" and the unknown
	// sentinel means "no id at all"; greeting either would read as a bug
	// to players, so the announcement is suppressed entirely.
	if name == "" || name == identity.UnknownName || identity.IsPlaceholder(name) {
		s.log.Debug("announcement suppressed (unresolved name)",
			logx.String("kind", kind),
			logx.Int64("player_id", id),
			logx.String("name", name),
		)
		return
	}
	if strings.TrimSpace(tpl) == "" {
		return
	}
	text := RenderTemplate(tpl, name)
	if err := s.sink.Emit(ctx, text); err != nil {
		s.log.Warn("announcement emit failed", logx.String("kind", kind), logx.Int64("player_id", id), logx.Err(err))
		return
	}
	s.record(ctx, storage.AnnounceRecord{At: s.now(), Kind: kind, Text: text, PlayerID: id})
}

func (s *Service) session(ctx context.Context, id int64, name, action string) {
	if s.store == nil || id <= 0 {
		return
	}
	rec := storage.SessionRecord{At: s.now(), PlayerID: id, Name: name, Action: action}
	if err := s.store.AppendSession(ctx, rec); err != nil {
		s.log.Debug("session history write failed", logx.Err(err))
	}
}
