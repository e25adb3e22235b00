package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "playerstatus/pkg/logx"
)

// sessionRing caps how many sessions the file driver keeps in memory
// for RecentSessions.
const sessionRing = 200

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.sessions.jsonl (append-only JSON Lines)
//   - <prefix>.announce.jsonl (append-only JSON Lines)
//
// The tail of the sessions file is replayed on open so RecentSessions
// works across restarts without an index.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	sessionFile  *os.File
	announceFile *os.File

	recent []SessionRecord
}

type sessionLine struct {
	At       int64  `json:"at"` // unix milli
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Action   string `json:"action"`
}

type announceLine struct {
	At       int64  `json:"at"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	PlayerID int64  `json:"player_id,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	sessionPath := prefix + ".sessions.jsonl"
	announcePath := prefix + ".announce.jsonl"

	recent := replaySessions(sessionPath)

	sf, err := os.OpenFile(sessionPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	af, err := os.OpenFile(announcePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = sf.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		sessionFile:  sf,
		announceFile: af,
		recent:       recent,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.sessionFile != nil {
		err1 = s.sessionFile.Close()
		s.sessionFile = nil
	}
	if s.announceFile != nil {
		err2 = s.announceFile.Close()
		s.announceFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendSession(ctx context.Context, r SessionRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionFile == nil {
		return errors.New("session file closed")
	}
	line := sessionLine{At: r.At.UnixMilli(), PlayerID: r.PlayerID, Name: r.Name, Action: r.Action}
	if err := json.NewEncoder(s.sessionFile).Encode(line); err != nil {
		return err
	}
	s.recent = append(s.recent, r)
	if len(s.recent) > sessionRing {
		s.recent = s.recent[len(s.recent)-sessionRing:]
	}
	return nil
}

func (s *fileStore) AppendAnnounce(ctx context.Context, r AnnounceRecord) error {
	_ = ctx
	if r.At.IsZero() {
		r.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announceFile == nil {
		return errors.New("announce file closed")
	}
	line := announceLine{At: r.At.UnixMilli(), Kind: r.Kind, Text: r.Text, PlayerID: r.PlayerID}
	return json.NewEncoder(s.announceFile).Encode(line)
}

func (s *fileStore) RecentSessions(ctx context.Context, n int) ([]SessionRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]SessionRecord, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out, nil
}

// replaySessions reads the tail of an existing sessions file. Best
// effort; malformed lines are skipped.
func replaySessions(path string) []SessionRecord {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var recent []SessionRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line sessionLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		recent = append(recent, SessionRecord{
			At:       time.UnixMilli(line.At),
			PlayerID: line.PlayerID,
			Name:     line.Name,
			Action:   line.Action,
		})
		if len(recent) > sessionRing {
			recent = recent[len(recent)-sessionRing:]
		}
	}
	return recent
}
