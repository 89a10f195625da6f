package readiness

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel/metric"
)

// dispatcherOptions holds configuration options for Dispatcher creation.
type dispatcherOptions struct {
	logger        *logiface.Logger[logiface.Event]
	meterProvider metric.MeterProvider
	slowLimiter   *catrate.Limiter
	tick          time.Duration
	slowThreshold time.Duration
}

// Option configures a Dispatcher instance.
type Option interface {
	applyDispatcher(*dispatcherOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyDispatcherFunc func(*dispatcherOptions) error
}

func (o *optionImpl) applyDispatcher(opts *dispatcherOptions) error {
	return o.applyDispatcherFunc(opts)
}

// WithTick sets how long Run sleeps after a pass in which no callback was
// invoked. Defaults to DefaultTick.
func WithTick(tick time.Duration) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		if tick < 0 {
			return fmt.Errorf("%w: negative tick: %s", ErrInvalidArgument, tick)
		}
		opts.tick = tick
		return nil
	}}
}

// WithLogger attaches a structured logger. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMeterProvider sets the provider used to create the dispatcher's
// instruments. Defaults to the global provider, see otel.GetMeterProvider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.meterProvider = provider
		return nil
	}}
}

// WithSlowCallback enables a warning for sync callbacks which take at least
// threshold to complete, as they delay every other sync channel. Warnings are
// rate limited per registration, using rates (see catrate.NewLimiter), which
// may be nil to log every occurrence.
func WithSlowCallback(threshold time.Duration, rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *dispatcherOptions) (err error) {
		if threshold <= 0 {
			return fmt.Errorf("%w: non-positive slow callback threshold: %s", ErrInvalidArgument, threshold)
		}
		opts.slowThreshold = threshold
		opts.slowLimiter = nil
		if rates != nil {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrInvalidArgument, r)
				}
			}()
			opts.slowLimiter = catrate.NewLimiter(rates)
		}
		return nil
	}}
}

// resolveOptions applies Option instances to dispatcherOptions.
func resolveOptions(opts []Option) (*dispatcherOptions, error) {
	cfg := &dispatcherOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDispatcher(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
