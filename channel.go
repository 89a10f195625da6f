package readiness

import (
	"slices"
	"time"
)

// DefaultChunkSize is the chunk size used by stream helpers, unless the
// channel configures another.
const DefaultChunkSize = 4096

type (
	// Channel models a readiness source, with a monotonic state machine, see
	// [State].
	//
	// All implementations must embed [Base] (directly or via [StreamBase]),
	// which holds the back-reference to the [Dispatcher] the channel is
	// registered with, if any.
	Channel interface {
		// Poll returns the current state, without blocking. It must behave
		// as Wait with a zero timeout.
		Poll() State

		// Wait blocks until the channel is not waiting, or the timeout
		// elapses, returning the state at that point. A non-positive timeout
		// must not block.
		Wait(timeout time.Duration) State

		// Close transitions the channel to StateClosed, waking any goroutine
		// blocked in Wait. It is idempotent. Implementations may continue to
		// report StateReady until their internal state is drained.
		Close() error

		base() *Base
	}

	// Synchronous may be implemented by channels which must only be polled
	// from the goroutine driving the dispatcher, e.g. those backed by an OS
	// primitive that cannot safely be waited on from an arbitrary goroutine.
	// If Synchronous returns true, registrations are forced to ModeSync.
	Synchronous interface {
		Synchronous() bool
	}

	// MessageChannel is a Channel that yields discrete values.
	MessageChannel[T any] interface {
		Channel

		// Read extracts one value, consuming readiness. It must return false
		// whenever the channel is not ready, and must be safe to call
		// repeatedly.
		Read() (T, bool)
	}

	// StreamChannel is a Channel that yields runs of bytes.
	StreamChannel interface {
		Channel

		// Read copies up to len(p) bytes into p, returning the number of
		// bytes copied. It returns 0 whenever the channel is not ready.
		Read(p []byte) int

		// ChunkSize is the number of bytes the helpers (e.g. ReadChunk)
		// attempt to read at a time.
		ChunkSize() int
	}

	// Base must be embedded by every Channel implementation.
	//
	// It holds a weak handle to the Dispatcher the channel is registered
	// with. The dispatcher owns the registration; the channel only holds the
	// handle, which is cleared on deregistration.
	Base struct {
		owner  *Dispatcher
		handle uint32
	}

	// StreamBase is a Base for StreamChannel implementations, which provides
	// a configurable chunk size.
	StreamBase struct {
		Base
		chunkSize int
	}
)

func (x *Base) base() *Base { return x }

// Owner returns the dispatcher the channel is currently registered with, or
// nil.
func (x *Base) Owner() *Dispatcher { return x.owner }

// Detach removes the channel from the dispatcher it is registered with, if
// any, as if by Dispatcher.Drop. It must be called from the goroutine that
// owns the dispatcher. It returns false if the channel was not registered.
func (x *Base) Detach() bool {
	if x.owner == nil {
		return false
	}
	return x.owner.dropHandle(x.handle)
}

// ChunkSize returns the configured chunk size, or DefaultChunkSize.
func (x *StreamBase) ChunkSize() int {
	if x.chunkSize <= 0 {
		return DefaultChunkSize
	}
	return x.chunkSize
}

// SetChunkSize configures the chunk size. Non-positive values restore the
// default.
func (x *StreamBase) SetChunkSize(n int) {
	x.chunkSize = n
}

// ReadChunk reads at most one chunk from s, returning the bytes read, which
// will be empty if s was not ready.
func ReadChunk(s StreamChannel) []byte {
	b := make([]byte, s.ChunkSize())
	return b[:s.Read(b)]
}

// ReadAppend grows dst by one chunk, reads into it, and truncates it to the
// bytes actually read.
func ReadAppend(s StreamChannel, dst []byte) []byte {
	n := len(dst)
	size := s.ChunkSize()
	dst = slices.Grow(dst, size)[:n+size]
	return dst[:n+s.Read(dst[n:])]
}

// ReadAll reads from s until it closes, returning everything read. It waits
// up to one second at a time, so it may take up to that long to observe the
// close.
func ReadAll(s StreamChannel) []byte {
	var b []byte
	for {
		switch s.Wait(time.Second) {
		case StateClosed:
			return b
		case StateReady:
			b = ReadAppend(s, b)
		}
	}
}
