package session

import (
	"sync"
	"time"
)

// CountdownTimer counts down from a fixed duration to zero, invoking
// onTick once per interval and onExpire exactly once. Remaining time is
// always recomputed from a wall-clock deadline, not from tick counts,
// so a throttled or delayed tick cannot extend the session.
//
// The timer cannot fail; it can only be mis-sequenced by the caller.
type CountdownTimer struct {
	interval time.Duration

	mu    sync.Mutex
	stop  chan struct{}
	armed bool
}

// NewCountdownTimer creates a disarmed timer ticking at the given
// interval. Production callers pass time.Second; tests shrink it.
func NewCountdownTimer(interval time.Duration) *CountdownTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &CountdownTimer{interval: interval}
}

// Arm starts the countdown. An already-armed timer is disarmed first,
// so at most one countdown goroutine exists at a time. onTick receives
// the remaining whole seconds; onExpire fires exactly once when the
// deadline passes, after which the timer is inert until re-armed.
func (t *CountdownTimer) Arm(duration time.Duration, onTick func(remainingSeconds int), onExpire func()) {
	t.Disarm()

	t.mu.Lock()
	stop := make(chan struct{})
	t.stop = stop
	t.armed = true
	t.mu.Unlock()

	deadline := time.Now().Add(duration)
	go t.run(deadline, stop, onTick, onExpire)
}

// Disarm stops the countdown. Idempotent and safe to call from any
// state, including from within tick callbacks.
func (t *CountdownTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return
	}
	t.armed = false
	close(t.stop)
	t.stop = nil
}

// Armed reports whether a countdown is currently running.
func (t *CountdownTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *CountdownTimer) run(deadline time.Time, stop chan struct{}, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			remaining := secondsUntil(deadline, now)
			if remaining != last {
				last = remaining
				if onTick != nil {
					onTick(remaining)
				}
			}
			if remaining <= 0 {
				// Mark inert before firing so a re-arm from inside
				// onExpire does not race with our own Disarm.
				t.mu.Lock()
				if t.stop == stop {
					t.armed = false
					t.stop = nil
				}
				t.mu.Unlock()
				if onExpire != nil {
					onExpire()
				}
				return
			}
		}
	}
}

// secondsUntil returns the whole seconds left before deadline, rounded
// up so a session never reads "0" while time genuinely remains, and
// clamped at zero once the deadline has passed.
func secondsUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return secs
}
