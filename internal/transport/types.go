// Package transport defines the outbound boundaries of the core:
// where announcement text goes and where identity lookups are issued.
package transport

import "context"

// Sink delivers one line of announcement text. Best-effort: no
// acknowledgment, no retry; a failed emit is reported and dropped.
type Sink interface {
	Emit(ctx context.Context, text string) error
}

// MultiSink fans an emit out to several sinks. Errors are collected by
// the caller's logging, not joined; the first error is returned so the
// emit still counts as failed for reporting.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, text string) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
