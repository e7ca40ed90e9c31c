//go:build !linux

package datindex

import (
	"errors"
	"os"
	"syscall"
)

// processAlive probes liveness with signal 0: on unix it performs the
// existence/permission checks of a real signal without delivering one.
func processAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// processStartTime is unavailable outside /proc-bearing platforms; callers
// fall back to liveness-only staleness detection (see isStale).
func processStartTime(pid int) (int64, error) {
	return 0, errors.New("process start time unavailable on this platform")
}

func currentProcessStartTime() int64 {
	return 0
}
