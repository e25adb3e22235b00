// Package identity resolves stable player names for events that carry
// only numeric ids.
//
// The game feed does not reliably attach a name to every event, so the
// resolver keeps a process-lifetime cache, deduplicates concurrent
// lookups per id, and bounds the wait for the asynchronous
// IdentityResponse that the server sends back. Callers always get a
// usable string: a cached name, a "Player_<id>" placeholder while a
// lookup is still in flight, or "unknown" when no id could be extracted.
package identity
