package identity

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// UnknownName is returned when no id could be extracted at all.
const UnknownName = "unknown"

// PlaceholderName derives the deterministic in-progress name for an id.
// It signals "resolution not yet complete" and must never be cached or
// announced.
func PlaceholderName(id int64) string {
	return "Player_" + strconv.FormatInt(id, 10)
}

var placeholderRe = regexp.MustCompile(`^Player_[0-9]+$`)

// IsPlaceholder reports whether name is a PlaceholderName for some id.
func IsPlaceholder(name string) bool {
	return placeholderRe.MatchString(name)
}

// Cache is the process-lifetime id→name mapping.
//
// Entries are overwritten on re-resolution and never deleted. Safe for
// concurrent use from resolution flows and the bulk-ingestion path.
type Cache struct {
	mu    sync.RWMutex
	names map[int64]string
}

func NewCache() *Cache {
	return &Cache{names: map[int64]string{}}
}

func (c *Cache) Get(id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

// Put stores a resolved name. Non-positive ids, blank names, the unknown
// sentinel and placeholders are silently rejected; half-formed payloads
// produce these routinely, so rejection is a no-op, not an error.
func (c *Cache) Put(id int64, name string) {
	name = strings.TrimSpace(name)
	if id <= 0 || name == "" || strings.EqualFold(name, UnknownName) || IsPlaceholder(name) {
		return
	}
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Snapshot copies the current mapping (ops/tests only).
func (c *Cache) Snapshot() map[int64]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]string, len(c.names))
	for id, name := range c.names {
		out[id] = name
	}
	return out
}
