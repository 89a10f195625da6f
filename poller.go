package readiness

import (
	"time"
)

// Poller turns a non-blocking poll into a bounded Wait, by polling repeatedly,
// sleeping for up to one tick between attempts. It is intended to be composed
// into channels backed by a source with no native blocking primitive, e.g.
// checking whether a process has exited.
//
// The zero value is ready to use, and sleeps for DefaultTick.
type Poller struct {
	Quantum
}

// NewPoller returns a Poller with the given tick, see NewQuantum.
func NewPoller(tick time.Duration) Poller {
	return Poller{Quantum: NewQuantum(tick)}
}

// Wait calls poll until it returns something other than StateWaiting, or the
// timeout elapses. A non-positive timeout results in exactly one call to
// poll. If done is non-nil, closing it cuts any sleep short, which allows the
// channel to observe its own Close promptly.
func (x Poller) Wait(timeout time.Duration, done <-chan struct{}, poll func() State) State {
	s := poll()
	if s != StateWaiting || timeout <= 0 {
		return s
	}

	deadline := time.Now().Add(timeout)
	var timer *time.Timer

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return StateWaiting
		}

		d := min(x.Tick(), remaining)
		if timer == nil {
			timer = time.NewTimer(d)
			defer timer.Stop()
		} else {
			timer.Reset(d)
		}

		select {
		case <-done:
			done = nil
		case <-timer.C:
		}

		if s = poll(); s != StateWaiting {
			return s
		}
	}
}
