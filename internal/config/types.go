package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Resolver ResolverConfig  `json:"resolver"`
	Announce AnnounceConfig  `json:"announce"`
	Feed     FeedConfig      `json:"feed"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ResolverConfig tunes the identity lookup path.
//
// All durations are Go duration strings (e.g. "500ms", "5s").
// Defaults (when fields are omitted/zero):
//   - lookup_timeout: "5s"
//   - poll_interval: "250ms"
type ResolverConfig struct {
	LookupTimeout string `json:"lookup_timeout,omitempty"`
	PollInterval  string `json:"poll_interval,omitempty"`
}

// FeedConfig locates the game server's companion feed.
//
// Network is "unix" or "tcp"; Addr is the socket path or host:port.
// If Addr is empty the feed reads stdin and writes stdout (pipe mode).
type FeedConfig struct {
	Network string `json:"network,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

// AnnounceConfig is the operator-facing notification configuration.
//
// Scheduled order is preserved; messages are evaluated top to bottom.
type AnnounceConfig struct {
	WelcomeEnabled  bool               `json:"welcome_enabled"`
	GoodbyeEnabled  bool               `json:"goodbye_enabled"`
	WelcomeTemplate string             `json:"welcome_template,omitempty"`
	GoodbyeTemplate string             `json:"goodbye_template,omitempty"`
	Scheduled       []ScheduledMessage `json:"scheduled,omitempty"`
}

// ScheduledMessage is one interval-triggered broadcast.
//
// LastSent is written back by the scheduler after a firing tick; operators
// normally leave it alone (or set it to "never" to force a fresh fire).
type ScheduledMessage struct {
	Enabled         bool     `json:"enabled"`
	Text            string   `json:"text"`
	IntervalMinutes int      `json:"interval_minutes"`
	LastSent        LastSent `json:"last_sent"`
}

// LastSent is a timestamp with a "never" sentinel.
//
// It serializes as RFC3339 ("2026-01-02T15:04:05Z") or the literal
// string "never". Empty string and null also decode as never-sent, so a
// hand-edited config can simply omit the field.
type LastSent struct {
	t time.Time
}

// NeverSent is the zero LastSent.
var NeverSent = LastSent{}

func LastSentAt(t time.Time) LastSent { return LastSent{t: t.UTC()} }

func (l LastSent) IsNever() bool   { return l.t.IsZero() }
func (l LastSent) Time() time.Time { return l.t }

func (l LastSent) MarshalJSON() ([]byte, error) {
	if l.t.IsZero() {
		return json.Marshal("never")
	}
	return json.Marshal(l.t.UTC().Format(time.RFC3339))
}

func (l *LastSent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Tolerate null.
		if strings.TrimSpace(string(b)) == "null" {
			*l = LastSent{}
			return nil
		}
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "never") {
		*l = LastSent{}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("last_sent: invalid timestamp %q: %w", s, err)
	}
	*l = LastSent{t: t.UTC()}
	return nil
}

// StorageConfig controls the optional history layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./playerstatus_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TelegramConfig controls the optional admin mirror of announcements.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Validate rejects configs the services cannot run with.
// It is wired as the manager's validator so a bad hot-reload is refused
// while the previous config stays live.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, _, err := cfg.Resolver.Timeouts(); err != nil {
		return err
	}
	for i, m := range cfg.Announce.Scheduled {
		if m.Enabled && m.IntervalMinutes <= 0 {
			return fmt.Errorf("announce.scheduled[%d]: interval_minutes must be > 0", i)
		}
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
		}
		if _, err := cfg.Storage.BusyWait(); err != nil {
			return err
		}
	}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required when telegram.enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram.enabled")
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Feed.Network)) {
	case "", "unix", "tcp":
	default:
		return fmt.Errorf("feed.network: unknown network %q", cfg.Feed.Network)
	}
	return nil
}
