//go:build !unix

package procchan

import (
	"os/exec"
	"sync/atomic"
)

func newReaper(cmd *exec.Cmd) reaper {
	var (
		code   atomic.Int64
		exited atomic.Bool
	)
	go func() {
		state, err := cmd.Process.Wait()
		if err != nil {
			code.Store(-1)
		} else {
			code.Store(int64(state.ExitCode()))
		}
		exited.Store(true)
	}()
	return func() (int, bool) {
		if !exited.Load() {
			return 0, false
		}
		return int(code.Load()), true
	}
}
