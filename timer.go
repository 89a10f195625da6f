package readiness

import (
	"sync"
	"time"
)

// Timer is a periodic event channel, which is ready once its next deadline
// has passed. Each time it fires, the deadline advances by a fixed interval,
// measured from the previous deadline rather than from the time it was
// observed, so it does not accumulate delay. Missed ticks are skipped, rather
// than queued: after a stall, the timer fires once, then resumes on the
// interval grid.
type Timer struct {
	Base
	mu       sync.Mutex
	changed  notifier
	next     time.Time
	interval time.Duration
	closed   bool
}

var _ Channel = (*Timer)(nil)

// NewTimer returns a Timer which will first fire after interval. A panic will
// occur if interval is not positive.
func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		panic(`readiness: non-positive timer interval`)
	}
	return &Timer{
		interval: interval,
		next:     time.Now().Add(interval),
	}
}

// Interval returns the period of the timer.
func (x *Timer) Interval() time.Duration { return x.interval }

// Poll reports (and consumes) a pending tick, without blocking.
func (x *Timer) Poll() State { return x.Wait(0) }

// Wait blocks for up to the lesser of timeout and the time remaining until
// the next deadline. A StateReady result consumes the tick.
func (x *Timer) Wait(timeout time.Duration) State {
	x.mu.Lock()
	now := time.Now()
	s := x.fire(now)
	if s != StateWaiting || timeout <= 0 {
		x.mu.Unlock()
		return s
	}
	d := min(timeout, x.next.Sub(now))
	ch := x.changed.wait()
	x.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	return x.fire(time.Now())
}

// Flush fast-forwards the deadline past the current time, discarding any
// pending tick, without firing.
func (x *Timer) Flush() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.skip(time.Now())
}

// Close wakes any blocked waiters.
func (x *Timer) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.changed.broadcast()
	return nil
}

func (x *Timer) fire(now time.Time) State {
	if x.closed {
		return StateClosed
	}
	if now.Before(x.next) {
		return StateWaiting
	}
	x.next = x.next.Add(x.interval)
	x.skip(now)
	return StateReady
}

// skip advances next by whole intervals, until it is after now.
func (x *Timer) skip(now time.Time) {
	if x.next.After(now) {
		return
	}
	missed := now.Sub(x.next)/x.interval + 1
	x.next = x.next.Add(missed * x.interval)
}
