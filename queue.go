package readiness

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Queue is a thread-safe FIFO message channel. Each written value becomes
// readable independently (edge-triggered per element). Once closed, writes
// fail, and any values not yet read are discarded. See also CloseWrite, which
// allows the queue to drain before it reports closed.
type Queue[T any] struct {
	Base
	mu      sync.Mutex
	changed notifier
	items   *queue.Queue
	eof     bool
	closed  bool
}

var _ MessageChannel[any] = (*Queue[any])(nil)

// NewQueue returns an empty, open Queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{items: queue.New()}
}

// Poll returns StateReady if there is at least one value to read.
func (x *Queue[T]) Poll() State { return x.Wait(0) }

// Wait blocks until a value is available, the channel closes, or the timeout
// elapses.
func (x *Queue[T]) Wait(timeout time.Duration) State {
	return waitState(&x.mu, &x.changed, timeout, x.state)
}

// Write appends a value, returning false if the queue is closed, or
// CloseWrite has been called.
func (x *Queue[T]) Write(value T) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed || x.eof {
		return false
	}
	x.items.Add(value)
	x.changed.broadcast()
	return true
}

// Read pops the front value, returning false if the queue is empty or
// closed.
func (x *Queue[T]) Read() (value T, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state() != StateReady {
		return
	}
	value, ok = x.items.Remove().(T), true
	if x.eof && x.items.Length() == 0 {
		x.close()
	}
	return
}

// Len returns the number of values available to read.
func (x *Queue[T]) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0
	}
	return x.items.Length()
}

// Close marks the queue closed, discarding any unread values, and wakes any
// blocked waiters.
func (x *Queue[T]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.close()
	return nil
}

// CloseWrite marks the end of the queue. Values already written remain
// readable, and the queue reports closed once they have all been read.
func (x *Queue[T]) CloseWrite() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed || x.eof {
		return nil
	}
	x.eof = true
	if x.items.Length() == 0 {
		x.close()
	} else {
		x.changed.broadcast()
	}
	return nil
}

func (x *Queue[T]) close() {
	if !x.closed {
		x.closed = true
		x.items = nil
		x.changed.broadcast()
	}
}

func (x *Queue[T]) state() State {
	switch {
	case x.closed:
		return StateClosed
	case x.items.Length() != 0:
		return StateReady
	default:
		return StateWaiting
	}
}
