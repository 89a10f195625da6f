package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/joeycumines/go-readiness"
	"github.com/joeycumines/go-readiness/internal/config"
	"github.com/joeycumines/go-readiness/procchan"
	"github.com/joeycumines/go-readiness/sigchan"
	"github.com/joeycumines/logiface"
)

var errNoCommand = errors.New("no command configured")

// run starts the configured command, and services it until it exits, and
// its output is drained, returning its exit code.
func run(ctx context.Context, cfg *config.Config, logger *logiface.Logger[logiface.Event], stdout, stderr io.Writer) (int, error) {
	if len(cfg.Command) == 0 {
		return 0, errNoCommand
	}

	opts := []readiness.Option{
		readiness.WithTick(cfg.Dispatcher.GetTick()),
		readiness.WithLogger(logger),
	}
	if threshold := cfg.Dispatcher.GetSlowCallback(); threshold > 0 {
		opts = append(opts, readiness.WithSlowCallback(threshold, cfg.Dispatcher.GetSlowCallbackRates()))
	}
	d, err := readiness.New(opts...)
	if err != nil {
		return 0, fmt.Errorf("creating dispatcher: %w", err)
	}
	defer d.Stop()

	output := procchan.OutputLines
	if cfg.Output == "bytes" {
		output = procchan.OutputBytes
	}

	proc, err := procchan.Start(
		ctx,
		exec.Command(cfg.Command[0], cfg.Command[1:]...),
		procchan.WithLogger(logger),
		procchan.WithTick(cfg.Dispatcher.GetTick()),
		procchan.WithOutput(output),
	)
	if err != nil {
		return 0, err
	}
	defer proc.Close()

	start := time.Now()
	logger.Info().
		Int(`pid`, proc.Pid()).
		Str(`command`, cfg.Command[0]).
		Log(`started`)

	mode := readiness.ModeSync
	if cfg.Dispatcher.Async {
		mode = readiness.ModeAsync
	}

	// the command is done once these have all closed
	pending := make(map[readiness.Channel]struct{})

	switch output {
	case procchan.OutputLines:
		for _, stream := range []struct {
			q *readiness.Queue[string]
			w io.Writer
		}{{proc.StdoutLines(), stdout}, {proc.StderrLines(), stderr}} {
			w := stream.w
			if err := readiness.AddMessage(d, stream.q, mode, func(line string) error {
				_, err := fmt.Fprintln(w, line)
				return err
			}); err != nil {
				return 0, err
			}
			pending[stream.q] = struct{}{}
		}
	default:
		for _, stream := range []struct {
			b *readiness.Buffer
			w io.Writer
		}{{proc.Stdout(), stdout}, {proc.Stderr(), stderr}} {
			w := stream.w
			if err := readiness.AddStream(d, stream.b, mode, func(chunk []byte) error {
				_, err := w.Write(chunk)
				return err
			}); err != nil {
				return 0, err
			}
			pending[stream.b] = struct{}{}
		}
	}

	exitCode := -1
	if err := readiness.AddMessage(d, proc.Exit(), readiness.ModeSync, func(code int) error {
		exitCode = code
		logger.Info().
			Int(`pid`, proc.Pid()).
			Int(`code`, code).
			Dur(`elapsed`, time.Since(start)).
			Log(`exited`)
		return nil
	}); err != nil {
		return 0, err
	}
	pending[proc.Exit()] = struct{}{}

	signals := sigchan.NotifyTick(cfg.Dispatcher.GetTick(), os.Interrupt, syscall.SIGTERM)
	if err := readiness.AddMessage(d, signals, readiness.ModeSync, func(sig os.Signal) error {
		logger.Notice().
			Stringer(`signal`, sig).
			Log(`forwarding signal`)
		if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("forwarding %s: %w", sig, err)
		}
		return nil
	}); err != nil {
		_ = signals.Close()
		return 0, err
	}

	if interval := cfg.Heartbeat.GetInterval(); interval > 0 {
		heartbeat := readiness.NewTimer(interval)
		if err := d.Add(heartbeat, readiness.ModeSync, func() error {
			logger.Info().
				Int(`pid`, proc.Pid()).
				Dur(`uptime`, time.Since(start)).
				Log(`heartbeat`)
			return nil
		}); err != nil {
			return 0, err
		}
	}

	for len(pending) != 0 {
		if err := d.Run(ctx); err != nil {
			return exitCode, err
		}
		if ch := d.LastChannel(); ch != nil {
			// async registrations remain after their worker exits
			d.Drop(ch)
			delete(pending, ch)
		}
	}

	return exitCode, nil
}
