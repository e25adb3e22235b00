package config

import (
	"fmt"
	"strings"
	"time"
)

// optionalDuration parses an operator-supplied duration string.
// Empty means "use the component default"; negatives are rejected.
func optionalDuration(field, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// Timeouts returns the resolver's bounded-wait tuning. Zero values mean
// the resolver's own defaults apply.
func (r ResolverConfig) Timeouts() (lookup, poll time.Duration, err error) {
	if lookup, err = optionalDuration("resolver.lookup_timeout", r.LookupTimeout); err != nil {
		return 0, 0, err
	}
	if poll, err = optionalDuration("resolver.poll_interval", r.PollInterval); err != nil {
		return 0, 0, err
	}
	return lookup, poll, nil
}

// BusyWait returns the sqlite busy timeout; zero means the driver default.
func (s StorageConfig) BusyWait() (time.Duration, error) {
	return optionalDuration("storage.busy_timeout", s.BusyTimeout)
}
