package identity

import (
	"reflect"

	logx "playerstatus/pkg/logx"
)

// maxBulkDepth bounds the bulk-statistics walk. The feed's bulk payloads
// nest at most two collection levels today; the bound keeps a cyclic or
// malformed payload from walking forever.
const maxBulkDepth = 4

// Ingest consumes an identity-response or bulk-statistics payload and
// populates the cache with every (id, name) pair found.
//
// This is the only writer that can satisfy a resolve's bounded wait, and
// it runs concurrently with any number of waits.
func (r *Resolver) Ingest(payload any) {
	n := r.ingestValue(payload, 0)
	if n > 0 {
		r.log.Debug("identities ingested", logx.Int("count", n), logx.Int("cache_size", r.cache.Len()))
	}
}

func (r *Resolver) ingestValue(v any, depth int) int {
	if v == nil || depth > maxBulkDepth {
		return 0
	}

	if id, name, ok := r.extract.ExtractIdentity(v); ok {
		r.cache.Put(id, name)
		// An identity-bearing element may still nest more of them
		// (e.g. a faction entry carrying its member list).
		return 1 + r.ingestChildren(v, depth)
	}
	return r.ingestChildren(v, depth)
}

// ingestChildren scans the collections and fields of v one level down.
func (r *Resolver) ingestChildren(v any, depth int) int {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return 0
		}
		rv = rv.Elem()
	}

	n := 0
	switch rv.Kind() {
	case reflect.Map:
		for it := rv.MapRange(); it.Next(); {
			if child, ok := childValue(it.Value()); ok {
				n += r.ingestValue(child, depth+1)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if child, ok := childValue(rv.Index(i)); ok {
				n += r.ingestValue(child, depth+1)
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			if child, ok := childValue(rv.Field(i)); ok {
				n += r.ingestValue(child, depth+1)
			}
		}
	}
	return n
}

// childValue filters out scalars; only container-ish values are worth
// descending into.
func childValue(rv reflect.Value) (any, bool) {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if !rv.CanInterface() {
			return nil, false
		}
		return rv.Interface(), true
	}
	return nil, false
}
