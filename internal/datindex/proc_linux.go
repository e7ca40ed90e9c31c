//go:build linux

package datindex

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// processAlive sends signal 0, the standard liveness probe: it performs
// all the permission/existence checks of a real signal without delivering
// one.
func processAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// processStartTime reads the 22nd field of /proc/<pid>/stat (start time
// in clock ticks since boot) and returns it as a stable, comparable
// integer. It is not wall-clock UTC, but it is exactly reproducible for a
// given process's lifetime, which is all the staleness check needs.
func processStartTime(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// Fields after the process name (which may itself contain spaces and
	// is parenthesized) are space-separated; find the closing paren.
	close := strings.LastIndexByte(string(data), ')')
	if close < 0 {
		return 0, fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(string(data[close+1:]))
	// field[0] is state (3rd overall); start time is the 22nd overall
	// field, i.e. fields[22-3] = fields[19].
	const startTimeIdx = 19
	if len(fields) <= startTimeIdx {
		return 0, fmt.Errorf("short /proc/%d/stat", pid)
	}
	return strconv.ParseInt(fields[startTimeIdx], 10, 64)
}

func currentProcessStartTime() int64 {
	v, err := processStartTime(os.Getpid())
	if err != nil {
		return 0
	}
	return v
}
