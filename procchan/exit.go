package procchan

import (
	"sync"
	"time"

	"github.com/joeycumines/go-readiness"
)

// Exit is a message channel which becomes ready once the process exits. Its
// single value is the exit code, after which it reports closed.
//
// Exit codes follow the shell convention: a process killed by a signal
// reports 128 plus the signal number. An exit that could not be observed
// reports -1.
type Exit struct {
	readiness.Base
	poller readiness.Poller
	reap   reaper
	done   chan struct{}
	mu     sync.Mutex
	code   int
	exited bool
	read   bool
	closed bool
}

// reaper checks, without blocking, whether the process has exited. It is
// called with Exit.mu held, and never again once it reports true.
type reaper func() (code int, exited bool)

var _ readiness.MessageChannel[int] = (*Exit)(nil)

func newExit(tick time.Duration, reap reaper) *Exit {
	return &Exit{
		poller: readiness.NewPoller(tick),
		reap:   reap,
		done:   make(chan struct{}),
	}
}

// Poll checks whether the process has exited, without blocking.
func (x *Exit) Poll() readiness.State { return x.Wait(0) }

// Wait polls until the process exits, the channel is closed, or the timeout
// elapses.
func (x *Exit) Wait(timeout time.Duration) readiness.State {
	return x.poller.Wait(timeout, x.done, x.poll)
}

// Read returns the exit code, once, after which the channel reports closed.
func (x *Exit) Read() (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state() != readiness.StateReady {
		return 0, false
	}
	x.read = true
	return x.code, true
}

// Code returns the exit code, without consuming it. It returns false if the
// process has not (yet) been observed to exit.
func (x *Exit) Code() (int, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.check()
	return x.code, x.exited
}

// Close stops the channel reporting the exit. It does not affect the process.
func (x *Exit) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.closed {
		x.closed = true
		close(x.done)
	}
	return nil
}

// await polls until the process exits, regardless of whether the channel is
// closed, returning false on timeout.
func (x *Exit) await(timeout time.Duration) bool {
	return x.poller.Wait(timeout, nil, func() readiness.State {
		if _, ok := x.Code(); ok {
			return readiness.StateReady
		}
		return readiness.StateWaiting
	}) == readiness.StateReady
}

func (x *Exit) poll() readiness.State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state()
}

func (x *Exit) state() readiness.State {
	if x.closed || x.read {
		return readiness.StateClosed
	}
	if x.check() {
		return readiness.StateReady
	}
	return readiness.StateWaiting
}

func (x *Exit) check() bool {
	if !x.exited {
		x.code, x.exited = x.reap()
	}
	return x.exited
}
