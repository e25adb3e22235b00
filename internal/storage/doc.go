// Package storage provides the optional history layer.
//
// It currently records:
//   - Player sessions (joins/leaves, with the resolved name)
//   - Fired announcements (welcome/goodbye/scheduled)
//
// History is advisory: writes are best-effort and a failure never
// affects resolution or announcement behavior.
package storage
