//go:build unix

package procchan

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

func newReaper(cmd *exec.Cmd) reaper {
	pid := cmd.Process.Pid
	return func() (int, bool) {
		var status unix.WaitStatus
		for {
			wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				// e.g. ECHILD, reaped by something else
				_ = cmd.Process.Release()
				return -1, true
			}
			if wpid != pid {
				return 0, false
			}
			break
		}
		_ = cmd.Process.Release()
		switch {
		case status.Exited():
			return status.ExitStatus(), true
		case status.Signaled():
			return 128 + int(status.Signal()), true
		default:
			return -1, true
		}
	}
}
