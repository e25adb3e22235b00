package identity

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// IdentityBearer is implemented by feed payloads that carry both a
// player id and the matching name (e.g. an IdentityResponse).
type IdentityBearer interface {
	PlayerID() int64
	PlayerName() string
}

// Identified is implemented by feed payloads that carry a player id
// but no name (the common case for connect/disconnect events).
type Identified interface {
	PlayerID() int64
}

// idFields are the conventional id field names, probed in order.
var idFields = []string{"id", "playerId", "entityId", "steamId"}

// nameFields are the conventional name field names, probed in order.
var nameFields = []string{"name", "playerName", "displayName"}

// extractFunc is one extraction strategy: yield an id or pass.
type extractFunc func(payload any) (int64, bool)

// Extractor pulls a player id out of an arbitrarily-shaped payload.
//
// Strategies run in a fixed order, first match wins:
//  1. capability interfaces (IdentityBearer / Identified)
//  2. conventional field names on maps and structs
//  3. any remaining field whose value parses as a positive integer
//
// Extraction has no side effects; a miss is an expected outcome, not an
// error.
type Extractor struct {
	strats []extractFunc
}

func NewExtractor() *Extractor {
	return &Extractor{strats: []extractFunc{
		extractCapability,
		extractConventional,
		extractGeneric,
	}}
}

// Extract returns the payload's player id, if any strategy finds one.
func (x *Extractor) Extract(payload any) (int64, bool) {
	if payload == nil {
		return 0, false
	}
	for _, s := range x.strats {
		if id, ok := s(payload); ok {
			return id, true
		}
	}
	return 0, false
}

// ExtractIdentity returns an (id, name) pair when the payload is
// identity-bearing: either through the capability interface or through
// conventional id+name fields. This is the short-circuit path: a
// payload that already names its player never needs a lookup.
func (x *Extractor) ExtractIdentity(payload any) (int64, string, bool) {
	if payload == nil {
		return 0, "", false
	}
	if b, ok := payload.(IdentityBearer); ok {
		id, name := b.PlayerID(), strings.TrimSpace(b.PlayerName())
		if id > 0 && name != "" {
			return id, name, true
		}
		return 0, "", false
	}
	id, ok := probeFields(payload, idFields, parsePositiveID)
	if !ok {
		return 0, "", false
	}
	name, ok := probeFields(payload, nameFields, parseName)
	if !ok {
		return 0, "", false
	}
	return id, name, true
}

func extractCapability(payload any) (int64, bool) {
	switch p := payload.(type) {
	case IdentityBearer:
		if id := p.PlayerID(); id > 0 {
			return id, true
		}
	case Identified:
		if id := p.PlayerID(); id > 0 {
			return id, true
		}
	}
	return 0, false
}

func extractConventional(payload any) (int64, bool) {
	return probeFields(payload, idFields, parsePositiveID)
}

// extractGeneric probes every field of a map or struct payload and
// returns the first value that parses as a positive integer.
func extractGeneric(payload any) (int64, bool) {
	switch m := payload.(type) {
	case map[string]any:
		for _, v := range m {
			if id, ok := parsePositiveID(v); ok {
				return id, true
			}
		}
		return 0, false
	}

	rv := reflect.ValueOf(payload)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0, false
	}
	for i := 0; i < rv.NumField(); i++ {
		if !rv.Type().Field(i).IsExported() {
			continue
		}
		if id, ok := parsePositiveID(rv.Field(i).Interface()); ok {
			return id, true
		}
	}
	return 0, false
}

// probeFields looks up the given field names (in order, case-insensitive)
// on a map or struct payload and returns the first parseable hit.
func probeFields[T any](payload any, names []string, parse func(any) (T, bool)) (T, bool) {
	var zero T

	switch m := payload.(type) {
	case map[string]any:
		for _, want := range names {
			for k, v := range m {
				if !strings.EqualFold(k, want) {
					continue
				}
				if out, ok := parse(v); ok {
					return out, true
				}
			}
		}
		return zero, false
	}

	rv := reflect.ValueOf(payload)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return zero, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	rt := rv.Type()
	for _, want := range names {
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() || !strings.EqualFold(f.Name, want) {
				continue
			}
			if out, ok := parse(rv.Field(i).Interface()); ok {
				return out, true
			}
		}
	}
	return zero, false
}

// parsePositiveID interprets a field value as a positive integer id.
// The feed is JSON, so numbers usually arrive as float64; operators and
// other tooling sometimes quote them as strings.
func parsePositiveID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		if n > 0 {
			return n, true
		}
	case int:
		if n > 0 {
			return int64(n), true
		}
	case int32:
		if n > 0 {
			return int64(n), true
		}
	case uint64:
		if n > 0 && n <= 1<<62 {
			return int64(n), true
		}
	case float64:
		if n > 0 && n == float64(int64(n)) {
			return int64(n), true
		}
	case json.Number:
		if id, err := n.Int64(); err == nil && id > 0 {
			return id, true
		}
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func parseName(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, UnknownName) {
		return "", false
	}
	return s, true
}
