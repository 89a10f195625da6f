package readiness

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// asyncWaitSlice bounds each Wait performed by an async worker.
const asyncWaitSlice = time.Second

type (
	// Dispatcher multiplexes callbacks over a set of channels.
	//
	// Channels registered with ModeSync are serviced cooperatively, by Run,
	// on the calling goroutine, in registration order. Each channel
	// registered with ModeAsync is serviced by a dedicated worker goroutine,
	// started by Add, and Run only observes the completion of that worker.
	//
	// A Dispatcher is not safe for concurrent use. Registration, Drop, Run
	// and Stop must all be called from the same goroutine (callbacks for
	// sync channels run on that goroutine, and may call them).
	//
	// Stop must be called to release a Dispatcher that still has
	// registrations, as it is the only way to guarantee workers have exited.
	Dispatcher struct {
		_ [0]func() // not comparable

		Quantum

		records     map[uint32]*registration
		logger      *logiface.Logger[logiface.Event]
		metrics     *dispatcherMetrics
		slowLimiter *catrate.Limiter
		lastChannel Channel
		lastErr     error
		order       []*registration
		slowAfter   time.Duration
		nextHandle  uint32

		// orphans are dropped async registrations whose worker may still
		// be running, waited on by Stop
		orphans []*registration
	}

	// registration is the record for a single channel. For async
	// registrations, err is written by the worker before done is closed, and
	// must only be read after done is closed.
	registration struct {
		channel  Channel
		callback func() error
		done     chan struct{}
		err      error
		handle   uint32
		mode     Mode
		dropped  bool
	}
)

// New constructs a Dispatcher, with no registrations.
func New(opts ...Option) (*Dispatcher, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	metrics, err := newDispatcherMetrics(cfg.meterProvider)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		Quantum:     NewQuantum(cfg.tick),
		records:     make(map[uint32]*registration),
		logger:      cfg.logger,
		metrics:     metrics,
		slowLimiter: cfg.slowLimiter,
		slowAfter:   cfg.slowThreshold,
	}, nil
}

// Add registers ch, such that callback is invoked each time it is observed
// ready, until it closes, or callback returns an error.
//
// The callback is responsible for consuming readiness, e.g. by reading from
// the channel. See also AddMessage and AddStream.
//
// Channels implementing Synchronous, and returning true, are always
// registered with ModeSync. Errors are returned for nil channels or
// callbacks, channels already registered (to any dispatcher), and invalid
// modes, all of which wrap ErrInvalidArgument.
func (x *Dispatcher) Add(ch Channel, mode Mode, callback func() error) error {
	if ch == nil {
		return ErrNilChannel
	}
	if callback == nil {
		return ErrNilCallback
	}
	return x.add(ch, mode, callback)
}

// AddMessage registers ch with d, reading a value each time it is observed
// ready, and passing it to callback. The callback is only invoked if a
// value was actually read. See also Dispatcher.Add.
func AddMessage[T any](d *Dispatcher, ch MessageChannel[T], mode Mode, callback func(value T) error) error {
	if ch == nil {
		return ErrNilChannel
	}
	if callback == nil {
		return ErrNilCallback
	}
	return d.add(ch, mode, func() error {
		if value, ok := ch.Read(); ok {
			return callback(value)
		}
		return nil
	})
}

// AddStream registers ch with d, reading a chunk (see ReadChunk) each time
// it is observed ready, and passing it to callback. The callback is only
// invoked if at least one byte was read, and must not retain the chunk.
// See also Dispatcher.Add.
func AddStream(d *Dispatcher, ch StreamChannel, mode Mode, callback func(chunk []byte) error) error {
	if ch == nil {
		return ErrNilChannel
	}
	if callback == nil {
		return ErrNilCallback
	}
	return d.add(ch, mode, func() error {
		if chunk := ReadChunk(ch); len(chunk) != 0 {
			return callback(chunk)
		}
		return nil
	})
}

func (x *Dispatcher) add(ch Channel, mode Mode, callback func() error) error {
	b := baseOf(ch)
	if b == nil {
		return ErrNilChannel
	}
	if b.owner != nil {
		return ErrAlreadyRegistered
	}
	if !mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	if s, ok := ch.(Synchronous); ok && s.Synchronous() {
		mode = ModeSync
	}

	rec := &registration{
		channel:  ch,
		callback: callback,
		handle:   x.allocHandle(),
		mode:     mode,
	}
	x.records[rec.handle] = rec
	x.order = append(x.order, rec)
	b.owner = x
	b.handle = rec.handle

	x.metrics.registrations.Add(context.Background(), 1, x.metrics.modeAttrs[mode])
	x.logger.Debug().
		Str(`channel`, fmt.Sprintf(`%T`, ch)).
		Stringer(`mode`, mode).
		Uint64(`handle`, uint64(rec.handle)).
		Log(`readiness: channel registered`)

	if mode == ModeAsync {
		rec.done = make(chan struct{})
		go x.worker(rec)
	}

	return nil
}

// baseOf returns the Base of ch, or nil if ch is nil, including a nil
// pointer of a concrete channel type.
func baseOf(ch Channel) *Base {
	if ch == nil {
		return nil
	}
	if v := reflect.ValueOf(ch); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return ch.base()
}

// allocHandle returns the next unused, non-zero handle.
func (x *Dispatcher) allocHandle() uint32 {
	for {
		x.nextHandle++
		if x.nextHandle == 0 {
			continue
		}
		if _, ok := x.records[x.nextHandle]; !ok {
			return x.nextHandle
		}
	}
}

func (x *Dispatcher) worker(rec *registration) {
	defer close(rec.done)
	for {
		switch rec.channel.Wait(asyncWaitSlice) {
		case StateReady:
			if err := x.call(rec); err != nil {
				rec.err = err
				return
			}
		case StateClosed:
			return
		}
	}
}

// call invokes the callback for rec, recording the outcome.
func (x *Dispatcher) call(rec *registration) error {
	start := time.Now()
	err := invoke(rec.callback)
	elapsed := time.Since(start)

	x.metrics.callback(rec.mode, err)

	if err != nil {
		x.logger.Err().
			Err(err).
			Stringer(`mode`, rec.mode).
			Uint64(`handle`, uint64(rec.handle)).
			Log(`readiness: callback failed`)
	}

	if rec.mode == ModeSync && x.slowAfter > 0 && elapsed >= x.slowAfter {
		if x.slowLimiter == nil {
			x.logSlow(rec, elapsed)
		} else if _, ok := x.slowLimiter.Allow(rec.handle); ok {
			x.logSlow(rec, elapsed)
		}
	}

	return err
}

func (x *Dispatcher) logSlow(rec *registration, elapsed time.Duration) {
	x.logger.Warning().
		Str(`channel`, fmt.Sprintf(`%T`, rec.channel)).
		Uint64(`handle`, uint64(rec.handle)).
		Dur(`elapsed`, elapsed).
		Log(`readiness: slow sync callback`)
}

// Drop deregisters ch, returning false if it is not registered with this
// dispatcher. It stops nothing else: the channel is left open, and any
// worker already started continues until the channel closes (or its
// callback fails). Stop still closes the channel of such a worker, and
// waits for it to exit.
func (x *Dispatcher) Drop(ch Channel) bool {
	b := baseOf(ch)
	if b == nil || b.owner != x {
		return false
	}
	return x.dropHandle(b.handle)
}

func (x *Dispatcher) dropHandle(handle uint32) bool {
	rec, ok := x.records[handle]
	if !ok {
		return false
	}
	x.drop(rec)
	return true
}

func (x *Dispatcher) drop(rec *registration) {
	if rec.dropped {
		return
	}
	rec.dropped = true
	delete(x.records, rec.handle)
	if i := slices.Index(x.order, rec); i >= 0 {
		x.order = slices.Delete(x.order, i, i+1)
	}
	if b := rec.channel.base(); b.owner == x && b.handle == rec.handle {
		b.owner = nil
		b.handle = 0
	}
	if rec.mode == ModeAsync && !rec.finished() {
		x.orphans = append(slices.DeleteFunc(x.orphans, (*registration).finished), rec)
	}

	x.metrics.registrations.Add(context.Background(), -1, x.metrics.modeAttrs[rec.mode])
	x.logger.Debug().
		Str(`channel`, fmt.Sprintf(`%T`, rec.channel)).
		Uint64(`handle`, uint64(rec.handle)).
		Log(`readiness: channel deregistered`)
}

// Run services registered channels until one of them terminates, returning
// LastError. It returns immediately (with a nil error) if there are no
// registrations.
//
// Run terminates when:
//   - a sync channel is observed closed, in which case it alone is
//     deregistered, and Run returns nil
//   - a sync callback fails (returns an error or panics), in which case the
//     error is returned, and the channel remains registered
//   - an async worker has exited, in which case its error (nil if the
//     channel closed) is returned, and the channel remains registered
//   - ctx is done, in which case ctx.Err() is returned, and LastChannel is
//     nil
//
// In all cases, LastChannel and LastError report what ended the call.
func (x *Dispatcher) Run(ctx context.Context) error {
	x.lastChannel = nil
	x.lastErr = nil

	if len(x.records) == 0 {
		return nil
	}

	x.logger.Debug().
		Int(`channels`, len(x.records)).
		Log(`readiness: run started`)

	var (
		snapshot []*registration
		timer    *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if len(x.records) == 0 {
			x.lastChannel = nil
			return nil
		}

		snapshot = append(snapshot[:0], x.order...)
		var worked bool

		for _, rec := range snapshot {
			if rec.dropped {
				continue
			}

			x.lastChannel = rec.channel

			switch rec.mode {
			case ModeSync:
				switch rec.channel.Poll() {
				case StateClosed:
					x.drop(rec)
					x.logRunStopped(rec, nil)
					return nil

				case StateReady:
					worked = true
					if err := x.call(rec); err != nil {
						x.lastErr = err
						x.logRunStopped(rec, err)
						return err
					}
				}

			case ModeAsync:
				select {
				case <-rec.done:
					x.lastErr = rec.err
					x.logRunStopped(rec, rec.err)
					return rec.err
				default:
				}
			}
		}

		if err := ctx.Err(); err != nil {
			x.lastChannel = nil
			x.lastErr = err
			return err
		}

		if worked {
			runtime.Gosched()
			continue
		}

		x.metrics.idle.Add(ctx, 1)

		if timer == nil {
			timer = time.NewTimer(x.Tick())
		} else {
			timer.Reset(x.Tick())
		}
		select {
		case <-ctx.Done():
			x.lastChannel = nil
			x.lastErr = ctx.Err()
			return x.lastErr
		case <-timer.C:
		}
	}
}

func (x *Dispatcher) logRunStopped(rec *registration, err error) {
	b := x.logger.Debug()
	if err != nil {
		b = b.Err(err)
	}
	b.Str(`channel`, fmt.Sprintf(`%T`, rec.channel)).
		Stringer(`mode`, rec.mode).
		Uint64(`handle`, uint64(rec.handle)).
		Log(`readiness: run stopped`)
}

// Stop closes every registered channel, then drains them, by calling Run
// until there are no registrations left. Async registrations are removed
// once their worker has exited. The channels of workers that were dropped
// while still running are also closed, and waited on. After Stop returns, no
// worker started by this dispatcher is running.
//
// Stop does not return callback errors, though they are still reported via
// LastError, after each iteration.
func (x *Dispatcher) Stop() {
	for len(x.records) != 0 {
		for _, rec := range slices.Clone(x.order) {
			if err := rec.channel.Close(); err != nil {
				x.logger.Warning().
					Err(err).
					Str(`channel`, fmt.Sprintf(`%T`, rec.channel)).
					Log(`readiness: close failed`)
			}
		}

		_ = x.Run(context.Background())

		for _, rec := range slices.Clone(x.order) {
			if rec.mode != ModeAsync {
				continue
			}
			select {
			case <-rec.done:
				x.drop(rec)
			default:
			}
		}
	}

	for _, rec := range x.orphans {
		if rec.finished() {
			continue
		}
		if err := rec.channel.Close(); err != nil {
			x.logger.Warning().
				Err(err).
				Str(`channel`, fmt.Sprintf(`%T`, rec.channel)).
				Log(`readiness: close failed`)
		}
		<-rec.done
	}
	x.orphans = nil
}

// finished reports whether the worker for an async registration has exited.
func (x *registration) finished() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

// Empty returns true if there are no registrations.
func (x *Dispatcher) Empty() bool { return len(x.records) == 0 }

// Len returns the number of registrations.
func (x *Dispatcher) Len() int { return len(x.records) }

// LastChannel returns the channel that ended the most recent Run, or nil.
func (x *Dispatcher) LastChannel() Channel { return x.lastChannel }

// LastError returns the error that ended the most recent Run, or nil, if it
// ended because a channel closed.
func (x *Dispatcher) LastError() error { return x.lastErr }
