package readiness

import (
	"sync"
	"time"
)

// notifier is a condition variable supporting a timed wait. It must be
// guarded by the lock of the channel that owns it.
type notifier struct {
	ch chan struct{}
}

// wait returns a channel that will be closed by the next broadcast.
func (x *notifier) wait() <-chan struct{} {
	if x.ch == nil {
		x.ch = make(chan struct{})
	}
	return x.ch
}

func (x *notifier) broadcast() {
	if x.ch != nil {
		close(x.ch)
		x.ch = nil
	}
}

// waitState implements Channel.Wait for channels guarded by mu, where state
// must be called with mu held, and n is broadcast on every state change.
func waitState(mu sync.Locker, n *notifier, timeout time.Duration, state func() State) State {
	mu.Lock()
	s := state()
	if s != StateWaiting || timeout <= 0 {
		mu.Unlock()
		return s
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		ch := n.wait()
		mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			mu.Lock()
			s = state()
			mu.Unlock()
			return s
		}

		mu.Lock()
		if s = state(); s != StateWaiting {
			mu.Unlock()
			return s
		}
	}
}
