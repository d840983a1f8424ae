package config

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "100ms", "1s", "1m30s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '100ms', '1s', '1m30s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultTimings returns the protocol timings used by status notifier hosts.
func DefaultTimings() Timings {
	return Timings{
		Debounce:        Duration(100 * time.Millisecond),
		RetryInterval:   Duration(1 * time.Second),
		RetryAttempts:   DefaultRetryAttempts,
		LivenessGrace:   Duration(10 * time.Second),
		CacheLifetime:   Duration(10 * time.Second),
		CacheGCInterval: Duration(100 * time.Second),
	}
}

// Validate checks that all timings are usable.
func (t Timings) Validate() error {
	if t.Debounce <= 0 {
		return fmt.Errorf("timing.debounce must be positive, got %s", t.Debounce.Duration())
	}
	if t.RetryInterval <= 0 {
		return fmt.Errorf("timing.retry_interval must be positive, got %s", t.RetryInterval.Duration())
	}
	if t.RetryAttempts < 0 || t.RetryAttempts > 10 {
		return fmt.Errorf("timing.retry_attempts must be between 0 and 10, got %d", t.RetryAttempts)
	}
	if t.LivenessGrace <= 0 {
		return fmt.Errorf("timing.liveness_grace must be positive, got %s", t.LivenessGrace.Duration())
	}
	if t.CacheLifetime < 0 || t.CacheGCInterval < 0 {
		return fmt.Errorf("timing.cache_* must not be negative")
	}
	return nil
}
