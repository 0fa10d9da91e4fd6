package utils

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dyfetch/internal"
)

// IntervalLimiter enforces a minimum delay between consecutive listing
// requests. It cannot fail, only delay; the only error path is context
// cancellation while waiting.
type IntervalLimiter struct {
	interval time.Duration
	next     time.Time
	mutex    sync.Mutex
}

// NewIntervalLimiter creates a limiter with the given minimum interval.
// A zero or negative interval disables the delay.
func NewIntervalLimiter(interval time.Duration) internal.RateLimiter {
	return &IntervalLimiter{interval: interval}
}

// Acquire blocks until the minimum interval since the previous permit
// has elapsed, then stamps the permit time. Concurrent callers are
// serialized via slot reservation, so no two completions are closer
// together than the configured interval.
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	l.mutex.Lock()
	now := time.Now()
	var slot time.Time
	if l.interval <= 0 || l.next.IsZero() || !now.Before(l.next) {
		slot = now
	} else {
		slot = l.next
	}
	l.next = slot.Add(l.interval)
	l.mutex.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetInterval updates the minimum interval
func (l *IntervalLimiter) SetInterval(d time.Duration) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.interval = d
}

// ParseInterval parses human-readable interval strings. Accepts plain
// numbers as seconds ("1", "0.5") and Go duration syntax ("500ms", "2s").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("interval cannot be negative: %s", s)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval format: %s (use seconds like 1.5, or durations like 500ms)", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("interval cannot be negative: %s", s)
	}
	return d, nil
}
