// Package procchan exposes a child process as a set of readiness channels:
// its output streams (as bytes or lines) and its exit.
//
// On unix platforms, exit is detected by polling wait4 with WNOHANG, via a
// readiness.Poller. Elsewhere, a goroutine blocks in os.Process.Wait.
package procchan
