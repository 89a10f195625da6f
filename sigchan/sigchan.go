// Package sigchan exposes OS signal delivery as a readiness message channel.
package sigchan

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/joeycumines/go-readiness"
)

// BufferSize is the number of signals buffered before further deliveries
// are dropped, see signal.Notify.
const BufferSize = 128

// Channel is a message channel of received signals. It is synchronous, and
// is therefore always serviced on the goroutine running the dispatcher.
type Channel struct {
	readiness.Base
	poller  readiness.Poller
	signals chan os.Signal
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

var (
	// compile time assertions
	_ readiness.MessageChannel[os.Signal] = (*Channel)(nil)
	_ readiness.Synchronous               = (*Channel)(nil)
)

// Notify starts relaying the given signals (or all incoming signals, if
// none are provided) to a new Channel. The channel must be closed to stop
// relaying.
func Notify(signals ...os.Signal) *Channel {
	return NotifyTick(readiness.DefaultTick, signals...)
}

// NotifyTick is Notify with a custom polling granularity for Wait.
func NotifyTick(tick time.Duration, signals ...os.Signal) *Channel {
	x := &Channel{
		poller:  readiness.NewPoller(tick),
		signals: make(chan os.Signal, BufferSize),
		done:    make(chan struct{}),
	}
	signal.Notify(x.signals, signals...)
	return x
}

// Synchronous always returns true.
func (x *Channel) Synchronous() bool { return true }

// Poll returns StateReady if at least one signal is pending.
func (x *Channel) Poll() readiness.State { return x.Wait(0) }

// Wait polls until a signal is pending, the channel is closed, or the
// timeout elapses.
func (x *Channel) Wait(timeout time.Duration) readiness.State {
	return x.poller.Wait(timeout, x.done, x.state)
}

// Read returns the next pending signal.
func (x *Channel) Read() (os.Signal, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil, false
	}
	select {
	case sig := <-x.signals:
		return sig, true
	default:
		return nil, false
	}
}

// Close stops relaying signals, discarding any pending.
func (x *Channel) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.closed {
		x.closed = true
		signal.Stop(x.signals)
		close(x.done)
	}
	return nil
}

func (x *Channel) state() readiness.State {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch {
	case x.closed:
		return readiness.StateClosed
	case len(x.signals) != 0:
		return readiness.StateReady
	default:
		return readiness.StateWaiting
	}
}
