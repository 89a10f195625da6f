package readiness

import (
	"sync"
	"time"
)

// Generator is a message channel which manufactures each value on demand,
// by calling a producer function. It is ready for as long as the producer
// is set, and closing it clears the producer.
type Generator[T any] struct {
	Base
	mu sync.Mutex
	fn func() T
}

var _ MessageChannel[any] = (*Generator[any])(nil)

// NewGenerator returns a Generator using the given producer. A panic will
// occur if fn is nil.
func NewGenerator[T any](fn func() T) *Generator[T] {
	if fn == nil {
		panic(`readiness: nil producer`)
	}
	return &Generator[T]{fn: fn}
}

// Poll returns StateReady, or StateClosed once closed.
func (x *Generator[T]) Poll() State { return x.Wait(0) }

// Wait does not block, the timeout is ignored.
func (x *Generator[T]) Wait(time.Duration) State {
	if x.producer() == nil {
		return StateClosed
	}
	return StateReady
}

// Read calls the producer, returning false if the channel is closed. The
// producer is called without holding any lock, and may close the channel.
func (x *Generator[T]) Read() (value T, ok bool) {
	if fn := x.producer(); fn != nil {
		value, ok = fn(), true
	}
	return
}

// Close clears the producer.
func (x *Generator[T]) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.fn = nil
	return nil
}

func (x *Generator[T]) producer() func() T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.fn
}
