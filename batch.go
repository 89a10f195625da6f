package readiness

import (
	"context"
	"io"
	"time"
)

// BatchConfig models optional configuration for the Batch function.
type BatchConfig struct {
	// MaxSize is the absolute maximum number of values to receive. Setting
	// this to a value < 0 will disable the maximum size constraint.
	//
	// Defaults to 16, if 0.
	MaxSize int

	// MinSize is the (target) minimum number of values to receive. If
	// PartialTimeout is configured, the effective minimum size will be 1, if
	// the PartialTimeout is reached.
	//
	// Setting this to a value < 0 will cause the PartialTimeout to start from
	// the call to Batch, and will allow returning without receiving any
	// values. In this scenario, PartialTimeout will apply to the first value.
	//
	// Defaults to 4, if 0.
	MinSize int

	// PartialTimeout is the maximum time to wait for a partial batch,
	// defined as a number of received values less than the MinSize. After/if
	// this timeout is reached, the effective minimum size will be reduced, see
	// MinSize for details.
	//
	// Defaults to 50ms, if 0.
	PartialTimeout time.Duration

	// Tick bounds each Wait on the channel, and therefore how long it may
	// take to observe ctx being canceled.
	//
	// Defaults to DefaultTick, if 0.
	Tick time.Duration
}

// Batch performs a blocking receive on the message channel, returning as
// many values as possible, given the constraints. If ctx cancels, the error
// will be returned. The cfg parameter is optional, and may be nil, in which
// case the documented defaults will be used. Values will be read from ch,
// and passed to handler. Errors from handler will be returned, and cause the
// call to Batch to return.
//
// If the channel is closed, Batch will return io.EOF. In this scenario, the
// minimum size may not be reached.
//
// Batch must not be used on a channel registered with a Dispatcher, as both
// would compete for values.
//
// Providing a nil ctx, ch, or handler will cause a panic.
func Batch[T any](ctx context.Context, cfg *BatchConfig, ch MessageChannel[T], handler func(value T) error) error {
	if ctx == nil {
		panic(`readiness: nil context`)
	}
	if ch == nil {
		panic(`readiness: nil channel`)
	}
	if handler == nil {
		panic(`readiness: nil handler`)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	maxSize := 16
	minSize := 4
	partialTimeout := 50 * time.Millisecond
	var quantum Quantum
	if cfg != nil {
		if cfg.MaxSize != 0 {
			maxSize = cfg.MaxSize
		}
		if cfg.MinSize != 0 {
			minSize = cfg.MinSize
		}
		if cfg.PartialTimeout != 0 {
			partialTimeout = cfg.PartialTimeout
		}
		quantum.SetTick(cfg.Tick)
	}

	// zero means no deadline
	var deadline time.Time
	if partialTimeout > 0 && minSize < 0 {
		// no minimum size, the timeout applies to the first value
		deadline = time.Now().Add(partialTimeout)
	}

	// receive waits up to the deadline (if any) for a value
	receive := func(block bool) (value T, state State, err error) {
		for {
			if err = ctx.Err(); err != nil {
				return
			}
			var timeout time.Duration
			if block {
				timeout = quantum.Tick()
				if !deadline.IsZero() {
					remaining := time.Until(deadline)
					if remaining <= 0 {
						state = StateWaiting
						return
					}
					timeout = min(timeout, remaining)
				}
			}
			switch state = ch.Wait(timeout); state {
			case StateClosed:
				return
			case StateReady:
				var ok bool
				if value, ok = ch.Read(); ok {
					return
				}
				// raced with another reader
				state = StateWaiting
			}
			if !block {
				return
			}
		}
	}

	var size int

	// receive the minimum number of values (or first value) OR partial timeout OR context cancel
	for (maxSize < 0 || size < maxSize) && (size < minSize || (size == 0 && !deadline.IsZero())) {
		value, state, err := receive(true)
		if err != nil {
			return err
		}
		if state == StateClosed {
			return io.EOF
		}
		if state != StateReady {
			// partial timeout
			break
		}

		size++

		if size == 1 && partialTimeout > 0 && deadline.IsZero() {
			// first value received, start the partial timeout
			deadline = time.Now().Add(partialTimeout)
		}

		if err := handler(value); err != nil {
			return err
		}
	}

	// receive what additional values we can, up to the maximum size OR context cancel
	for maxSize < 0 || size < maxSize {
		value, state, err := receive(false)
		if err != nil {
			return err
		}
		if state == StateClosed {
			return io.EOF
		}
		if state != StateReady {
			break
		}

		size++

		if err := handler(value); err != nil {
			return err
		}
	}

	return ctx.Err()
}
