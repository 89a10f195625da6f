package readiness

import (
	"sync"
	"time"
)

// Latch is a single-slot message channel, which deduplicates writes. It is
// level-triggered: it is ready only while the stored value differs from the
// value last read. Writing the value already stored is a no-op, which
// neither changes state nor wakes waiters.
type Latch[T comparable] struct {
	Base
	mu      sync.Mutex
	changed notifier
	value   T
	last    T
	set     bool
	read    bool
	closed  bool
}

var _ MessageChannel[int] = (*Latch[int])(nil)

// NewLatch returns an empty, open Latch.
func NewLatch[T comparable]() *Latch[T] { return new(Latch[T]) }

// Poll returns StateReady if the stored value has not yet been read.
func (x *Latch[T]) Poll() State { return x.Wait(0) }

// Wait blocks until a new value is stored, the channel closes, or the timeout
// elapses.
func (x *Latch[T]) Wait(timeout time.Duration) State {
	return waitState(&x.mu, &x.changed, timeout, x.state)
}

// Write stores value, unless it is equal to the value already stored. It
// returns false if the latch is closed.
func (x *Latch[T]) Write(value T) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return false
	}
	if x.set && x.value == value {
		return true
	}
	x.value, x.set = value, true
	if x.state() == StateReady {
		x.changed.broadcast()
	}
	return true
}

// Read returns the stored value, consuming readiness.
func (x *Latch[T]) Read() (value T, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state() != StateReady {
		return
	}
	x.last, x.read = x.value, true
	return x.value, true
}

// Peek returns the stored value, without consuming readiness. It returns
// false if nothing has been written.
func (x *Latch[T]) Peek() (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.value, x.set
}

// Close marks the latch closed, waking any blocked waiters.
func (x *Latch[T]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.changed.broadcast()
	return nil
}

func (x *Latch[T]) state() State {
	switch {
	case x.closed:
		return StateClosed
	case x.set && (!x.read || x.value != x.last):
		return StateReady
	default:
		return StateWaiting
	}
}
