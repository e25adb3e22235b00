package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SessionRecord is one join or leave.
// Name may be a placeholder when resolution had not finished by the
// time the event was handled.
type SessionRecord struct {
	At       time.Time
	PlayerID int64
	Name     string
	Action   string // "join" | "leave"
}

// AnnounceRecord is one fired announcement.
type AnnounceRecord struct {
	At       time.Time
	Kind     string // "welcome" | "goodbye" | "scheduled"
	Text     string
	PlayerID int64 // 0 for scheduled broadcasts
}
