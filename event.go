package readiness

import (
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Always is an event channel that is ready until it is closed.
	Always struct {
		Base
		closed atomic.Bool
	}

	// Never is an event channel that never becomes ready. Wait blocks for the
	// full timeout, unless the channel is closed.
	Never struct {
		Base
		mu      sync.Mutex
		changed notifier
		closed  bool
	}
)

var (
	// compile time assertions

	_ Channel = (*Always)(nil)
	_ Channel = (*Never)(nil)
)

// NewAlways returns a channel that is always ready, until closed.
func NewAlways() *Always { return new(Always) }

// Poll returns StateReady, or StateClosed once closed.
func (x *Always) Poll() State { return x.Wait(0) }

// Wait does not block, the timeout is ignored.
func (x *Always) Wait(time.Duration) State {
	if x.closed.Load() {
		return StateClosed
	}
	return StateReady
}

// Close stops the channel reporting ready.
func (x *Always) Close() error {
	x.closed.Store(true)
	return nil
}

// NewNever returns a channel that never becomes ready.
func NewNever() *Never { return new(Never) }

// Poll returns StateWaiting, or StateClosed once closed.
func (x *Never) Poll() State { return x.Wait(0) }

// Wait blocks until the timeout elapses or the channel is closed.
func (x *Never) Wait(timeout time.Duration) State {
	return waitState(&x.mu, &x.changed, timeout, x.state)
}

// Close wakes any blocked waiters.
func (x *Never) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.changed.broadcast()
	return nil
}

func (x *Never) state() State {
	if x.closed {
		return StateClosed
	}
	return StateWaiting
}
