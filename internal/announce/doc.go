// Package announce emits player welcome/goodbye messages and the
// operator-configured scheduled broadcasts.
//
// The scheduler evaluates every enabled message once per minute, in
// configuration order, and fires each at most once per interval. After
// a tick that fired anything, the whole config (with advanced last_sent
// values) is persisted once. Persistence is best-effort: a failed write
// is reported and the in-memory state stands, so a crash between firing
// and persisting re-fires that message after restart.
package announce
