package readiness

import (
	"time"
)

// DefaultTick is the granularity used by a zero [Quantum].
const DefaultTick = 20 * time.Millisecond

// Quantum holds a duration used as a polling or ticking granularity, e.g. how
// long an idle [Dispatcher] sleeps between passes. The zero value uses
// DefaultTick.
type Quantum struct {
	tick time.Duration
}

// NewQuantum returns a Quantum with the given tick. Non-positive values fall
// back to DefaultTick.
func NewQuantum(tick time.Duration) Quantum {
	return Quantum{tick: tick}
}

// Tick returns the configured granularity.
func (x Quantum) Tick() time.Duration {
	if x.tick <= 0 {
		return DefaultTick
	}
	return x.tick
}

// SetTick replaces the granularity.
func (x *Quantum) SetTick(tick time.Duration) {
	x.tick = tick
}
