package datindex

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// LockInfo is the JSON shape of the index lock file: a single writer
// across processes is enforced by pinning the owning process's
// (pid, start time).
type LockInfo struct {
	ID                 string    `json:"id"`
	PID                int       `json:"pid"`
	ProcessStartTimeUTC int64    `json:"process_start_time_utc"`
	CreatedAtUTC       time.Time `json:"created_at_utc"`
	Hostname           string    `json:"hostname"`
	User               string    `json:"user"`
	IndexPath          string    `json:"index_path"`
}

// Lock is an acquired (or attempted) index lock.
type Lock struct {
	path string
	info LockInfo
}

// AcquireLock takes the file-based advisory writer lock beside indexPath,
// reclaiming it if the recorded owner is stale (its PID either doesn't
// exist or has a different start time than recorded).
func AcquireLock(lockPath, indexPath string) (*Lock, error) {
	if existing, err := readLockFile(lockPath); err == nil {
		if !isStale(existing) {
			return nil, errors.Errorf("index locked by pid %d since %s", existing.PID, existing.CreatedAtUTC)
		}
	}

	info := LockInfo{
		ID:                  uuid.NewString(),
		PID:                 os.Getpid(),
		ProcessStartTimeUTC: currentProcessStartTime(),
		CreatedAtUTC:        time.Now().UTC(),
		Hostname:            hostnameOrEmpty(),
		User:                userOrEmpty(),
		IndexPath:           indexPath,
	}

	if err := writeLockFile(lockPath, info); err != nil {
		return nil, errors.Wrap(err, "write index lock")
	}
	return &Lock{path: lockPath, info: info}, nil
}

// Release removes the lock file if we still own it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	existing, err := readLockFile(l.path)
	if err != nil {
		return nil // already gone
	}
	if existing.ID != l.info.ID {
		return nil // someone else's lock now, don't touch it
	}
	return os.Remove(l.path)
}

func isStale(info LockInfo) bool {
	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return true
	}
	if !processAlive(proc) {
		return true
	}
	actualStart, err := processStartTime(info.PID)
	if err != nil {
		// Can't confirm identity on this platform; be conservative and
		// treat a live PID as still holding the lock.
		return false
	}
	return actualStart != info.ProcessStartTimeUTC
}

func readLockFile(path string) (LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockInfo{}, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return LockInfo{}, err
	}
	return info, nil
}

func writeLockFile(path string, info LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func hostnameOrEmpty() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}

func userOrEmpty() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}
