package monitoring

import (
	"sync"
	"time"

	"github.com/fieldrobotics/elevmap/internal/timeutil"
)

// Throttle suppresses repeated log lines, emitting at most one per interval.
// Each Throttle tracks its own last-emit time, so callers typically keep one
// per message site. Safe for concurrent use.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	clock    timeutil.Clock
	last     time.Time
}

// NewThrottle returns a Throttle emitting at most once per interval using the
// real clock.
func NewThrottle(interval time.Duration) *Throttle {
	return NewThrottleWithClock(interval, timeutil.RealClock{})
}

// NewThrottleWithClock returns a Throttle driven by the given clock. Tests use
// a MockClock to advance time deterministically.
func NewThrottleWithClock(interval time.Duration, clock timeutil.Clock) *Throttle {
	return &Throttle{interval: interval, clock: clock}
}

// Logf logs through the package logger unless a line was emitted within the
// throttle interval, in which case it is dropped.
func (t *Throttle) Logf(format string, v ...interface{}) {
	if !t.Allow() {
		return
	}
	Logf(format, v...)
}

// Allow reports whether an emission is permitted now, and if so records it.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
