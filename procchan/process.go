package procchan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/joeycumines/go-readiness"
	"github.com/joeycumines/logiface"
)

// Process is a started child process, exposed as readiness channels.
//
// Output is only captured for streams the caller left unset on the
// exec.Cmd. Depending on the OutputMode, either the byte stream or the line
// accessors are populated, the others return nil. Each output channel
// drains after the stream ends, then reports closed.
//
// Close must be called to release resources, including after the process
// exits.
type Process struct {
	cmd         *exec.Cmd
	logger      *logiface.Logger[logiface.Event]
	exit        *Exit
	stdout      *readiness.Buffer
	stderr      *readiness.Buffer
	stdoutLines *readiness.Queue[string]
	stderrLines *readiness.Queue[string]
	stopCtx     func() bool
	copied      chan struct{}
	pipes       []io.Closer
	copiers     sync.WaitGroup
	drain       time.Duration
	pid         int
	closeOnce   sync.Once
}

// Start starts cmd, which must not have been started. The process is killed
// if ctx is canceled before Close is called.
func Start(ctx context.Context, cmd *exec.Cmd, opts ...Option) (*Process, error) {
	if ctx == nil {
		panic(`procchan: nil context`)
	}
	if cmd == nil {
		panic(`procchan: nil command`)
	}

	cfg := resolveOptions(opts)

	x := &Process{
		cmd:    cmd,
		logger: cfg.logger,
		copied: make(chan struct{}),
		drain:  cfg.drainTimeout,
	}

	type capture struct {
		name  string
		pipe  io.ReadCloser
		bytes **readiness.Buffer
		lines **readiness.Queue[string]
	}
	var captures []capture

	if cmd.Stdout == nil {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("procchan: stdout pipe: %w", err)
		}
		captures = append(captures, capture{`stdout`, pipe, &x.stdout, &x.stdoutLines})
	}
	if cmd.Stderr == nil {
		pipe, err := cmd.StderrPipe()
		if err != nil {
			for _, c := range captures {
				_ = c.pipe.Close()
			}
			return nil, fmt.Errorf("procchan: stderr pipe: %w", err)
		}
		captures = append(captures, capture{`stderr`, pipe, &x.stderr, &x.stderrLines})
	}

	if err := cmd.Start(); err != nil {
		for _, c := range captures {
			_ = c.pipe.Close()
		}
		return nil, fmt.Errorf("procchan: start: %w", err)
	}

	x.pid = cmd.Process.Pid
	x.exit = newExit(cfg.tick, newReaper(cmd))
	x.stopCtx = context.AfterFunc(ctx, func() {
		x.logger.Debug().
			Int(`pid`, x.pid).
			Log(`procchan: context done, killing process`)
		x.kill()
	})

	for _, c := range captures {
		x.pipes = append(x.pipes, c.pipe)
		x.copiers.Add(1)
		switch cfg.output {
		case OutputLines:
			q := readiness.NewQueue[string]()
			*c.lines = q
			go x.copyLines(c.name, c.pipe, q, cfg.maxLineSize)
		default:
			b := readiness.NewBuffer()
			*c.bytes = b
			go x.copyBytes(c.name, c.pipe, b)
		}
	}

	go func() {
		x.copiers.Wait()
		close(x.copied)
	}()

	x.logger.Debug().
		Int(`pid`, x.pid).
		Str(`path`, cmd.Path).
		Log(`procchan: process started`)

	return x, nil
}

func (x *Process) copyBytes(name string, r io.Reader, b *readiness.Buffer) {
	defer x.copiers.Done()
	defer b.CloseWrite()
	if _, err := io.Copy(b, r); err != nil {
		x.copyFailed(name, r, err)
	}
}

func (x *Process) copyLines(name string, r io.Reader, q *readiness.Queue[string], maxLineSize int) {
	defer x.copiers.Done()
	defer q.CloseWrite()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(maxLineSize, 64*1024)), maxLineSize)
	for scanner.Scan() {
		if !q.Write(scanner.Text()) {
			x.copyFailed(name, r, readiness.ErrClosed)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		x.copyFailed(name, r, err)
	}
}

// copyFailed discards the remainder of r, so the process cannot block on a
// full pipe.
func (x *Process) copyFailed(name string, r io.Reader, err error) {
	if !errors.Is(err, readiness.ErrClosed) && !errors.Is(err, os.ErrClosed) {
		x.logger.Warning().
			Err(err).
			Str(`stream`, name).
			Log(`procchan: output copy failed`)
	}
	_, _ = io.Copy(io.Discard, r)
}

// Pid returns the process id.
func (x *Process) Pid() int { return x.pid }

// Exit returns the channel reporting the exit of the process.
func (x *Process) Exit() *Exit { return x.exit }

// ExitCode returns the exit code, or -1 if the process has not been observed
// to exit.
func (x *Process) ExitCode() int {
	if code, ok := x.exit.Code(); ok {
		return code
	}
	return -1
}

// Stdout returns the captured stdout, in OutputBytes mode, or nil.
func (x *Process) Stdout() *readiness.Buffer { return x.stdout }

// Stderr returns the captured stderr, in OutputBytes mode, or nil.
func (x *Process) Stderr() *readiness.Buffer { return x.stderr }

// StdoutLines returns the captured stdout, in OutputLines mode, or nil.
func (x *Process) StdoutLines() *readiness.Queue[string] { return x.stdoutLines }

// StderrLines returns the captured stderr, in OutputLines mode, or nil.
func (x *Process) StderrLines() *readiness.Queue[string] { return x.stderrLines }

// Signal sends sig to the process, unless it has already exited.
func (x *Process) Signal(sig os.Signal) error {
	if _, ok := x.exit.Code(); ok {
		return os.ErrProcessDone
	}
	return x.cmd.Process.Signal(sig)
}

func (x *Process) kill() {
	if err := x.Signal(os.Kill); err != nil && !errors.Is(err, os.ErrProcessDone) {
		x.logger.Warning().
			Err(err).
			Int(`pid`, x.pid).
			Log(`procchan: kill failed`)
	}
}

// Close kills the process, if it is still running, and waits for it to
// exit. Output still in flight is given up to the drain timeout to be
// copied, after which the pipes are closed. The output channels are left
// open, for any remaining values to be read, and the exit channel is closed.
func (x *Process) Close() error {
	x.closeOnce.Do(func() {
		x.stopCtx()
		x.kill()
		if !x.exit.await(time.Minute) {
			x.logger.Err().
				Int(`pid`, x.pid).
				Log(`procchan: process did not exit`)
		}

		timer := time.NewTimer(x.drain)
		select {
		case <-x.copied:
		case <-timer.C:
			for _, p := range x.pipes {
				_ = p.Close()
			}
			<-x.copied
		}
		timer.Stop()
		for _, p := range x.pipes {
			_ = p.Close()
		}

		_ = x.exit.Close()

		x.logger.Debug().
			Int(`pid`, x.pid).
			Int(`code`, x.ExitCode()).
			Log(`procchan: process closed`)
	})
	return nil
}
