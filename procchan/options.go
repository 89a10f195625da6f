package procchan

import (
	"time"

	"github.com/joeycumines/logiface"
)

// OutputMode selects how captured output is exposed.
type OutputMode uint8

const (
	// OutputBytes exposes output as readiness.Buffer stream channels, see
	// Process.Stdout and Process.Stderr.
	OutputBytes OutputMode = iota
	// OutputLines exposes output as readiness.Queue message channels, one
	// value per line, without the line terminator. See Process.StdoutLines
	// and Process.StderrLines.
	OutputLines
)

// DefaultMaxLineSize is the default maximum line length, in OutputLines mode.
const DefaultMaxLineSize = 1 << 20

type processOptions struct {
	logger       *logiface.Logger[logiface.Event]
	tick         time.Duration
	drainTimeout time.Duration
	maxLineSize  int
	output       OutputMode
}

// Option configures Start.
type Option interface {
	applyProcess(*processOptions)
}

type optionImpl struct {
	applyProcessFunc func(*processOptions)
}

func (o *optionImpl) applyProcess(opts *processOptions) { o.applyProcessFunc(opts) }

// WithLogger attaches a structured logger. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *processOptions) {
		opts.logger = logger
	}}
}

// WithTick sets how often the exit channel checks whether the process has
// exited, while waiting. Defaults to readiness.DefaultTick.
func WithTick(tick time.Duration) Option {
	return &optionImpl{func(opts *processOptions) {
		opts.tick = tick
	}}
}

// WithOutput selects how output is exposed. Defaults to OutputBytes.
func WithOutput(mode OutputMode) Option {
	return &optionImpl{func(opts *processOptions) {
		opts.output = mode
	}}
}

// WithMaxLineSize sets the longest line accepted in OutputLines mode. Output
// following an over-long line is discarded. Defaults to DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return &optionImpl{func(opts *processOptions) {
		opts.maxLineSize = n
	}}
}

// WithDrainTimeout sets how long Process.Close waits for output to be
// copied, after the process exits, before closing the pipes. Defaults to one
// second.
func WithDrainTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *processOptions) {
		opts.drainTimeout = d
	}}
}

func resolveOptions(opts []Option) *processOptions {
	cfg := &processOptions{
		drainTimeout: time.Second,
		maxLineSize:  DefaultMaxLineSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyProcess(cfg)
		}
	}
	if cfg.maxLineSize <= 0 {
		cfg.maxLineSize = DefaultMaxLineSize
	}
	return cfg
}
