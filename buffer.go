package readiness

import (
	"io"
	"sync"
	"time"
)

// Buffer is a growable byte stream channel, with a read cursor. It is ready
// while unread bytes remain. Once more than half of the underlying buffer has
// been consumed, the unread bytes are shifted to the front, bounding growth.
//
// Buffer implements io.Writer, for use as e.g. the stdout of a process.
type Buffer struct {
	StreamBase
	mu      sync.Mutex
	changed notifier
	buf     []byte
	off     int
	eof     bool
	closed  bool
}

var (
	// compile time assertions

	_ StreamChannel = (*Buffer)(nil)
	_ io.Writer     = (*Buffer)(nil)
)

// NewBuffer returns an empty, open Buffer.
func NewBuffer() *Buffer { return new(Buffer) }

// Poll returns StateReady if there are unread bytes.
func (x *Buffer) Poll() State { return x.Wait(0) }

// Wait blocks until bytes are available, the channel closes, or the timeout
// elapses.
func (x *Buffer) Wait(timeout time.Duration) State {
	return waitState(&x.mu, &x.changed, timeout, x.state)
}

// Write appends p, failing with ErrClosed if the buffer has been closed, or
// CloseWrite has been called.
func (x *Buffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed || x.eof {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	x.buf = append(x.buf, p...)
	x.changed.broadcast()
	return len(p), nil
}

// Read copies unread bytes into p, advancing the cursor.
func (x *Buffer) Read(p []byte) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state() != StateReady {
		return 0
	}

	n := copy(p, x.buf[x.off:])
	x.off += n

	if x.off > len(x.buf)/2 {
		k := copy(x.buf, x.buf[x.off:])
		x.buf = x.buf[:k]
		x.off = 0
	}

	if x.eof && len(x.buf) == 0 {
		x.closed = true
		x.changed.broadcast()
	}

	return n
}

// Len returns the number of unread bytes.
func (x *Buffer) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.buf) - x.off
}

// CloseWrite marks the end of the stream. The buffer remains ready until
// drained, then reports StateClosed.
func (x *Buffer) CloseWrite() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.eof = true
	if len(x.buf) == x.off {
		x.closed = true
	}
	x.changed.broadcast()
	return nil
}

// Close discards any buffered bytes, marks the buffer closed, and wakes any
// blocked waiters.
func (x *Buffer) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.buf, x.off = nil, 0
	x.changed.broadcast()
	return nil
}

func (x *Buffer) state() State {
	switch {
	case x.closed:
		return StateClosed
	case x.off < len(x.buf):
		return StateReady
	default:
		return StateWaiting
	}
}
