package readiness

// State is the externally visible status of a [Channel].
//
// State machine:
//
//	StateWaiting ⇄ StateReady      [source dependent]
//	StateWaiting → StateClosed     [Close]
//	StateReady   → StateClosed     [Close, or once drained after Close]
//	StateClosed  → (terminal)
type State uint8

const (
	// StateClosed indicates the channel will never become ready again.
	StateClosed State = iota
	// StateWaiting indicates the channel is open, but has nothing to offer.
	StateWaiting
	// StateReady indicates the channel may be read, or that its event fired.
	StateReady
)

// Mode selects how a [Dispatcher] services a channel.
type Mode uint8

const (
	// ModeSync channels are polled inline by [Dispatcher.Run].
	ModeSync Mode = iota + 1
	// ModeAsync channels are waited on by a dedicated worker goroutine.
	ModeAsync
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateWaiting:
		return "Waiting"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	default:
		return "invalid"
	}
}

func (m Mode) valid() bool {
	return m == ModeSync || m == ModeAsync
}
