package securestore

import (
	"fmt"
	"os"
	"time"
)

const (
	lockRetries    = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAge   = 30 * time.Second
)

// fileLock coordinates slot-file writes across processes via a sibling
// lock file created with O_EXCL.
type fileLock struct {
	f    *os.File
	path string
}

// acquireFileLock acquires an exclusive lock for the slot file at path,
// retrying for a bounded time and reaping locks left behind by a crashed
// process.
func acquireFileLock(path string) (*fileLock, error) {
	lockPath := path + ".lock"

	for i := 0; i < lockRetries; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID in the lock file helps debugging stuck locks.
			fmt.Fprintf(f, "%d", os.Getpid())
			return &fileLock{f: f, path: lockPath}, nil
		}

		if os.IsExist(err) {
			if info, statErr := os.Stat(lockPath); statErr == nil {
				if time.Since(info.ModTime()) > lockStaleAge {
					if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
						return nil, fmt.Errorf("failed to remove stale lock %s: %w", lockPath, remErr)
					}
					continue
				}
			}
			time.Sleep(lockRetryDelay)
			continue
		}

		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return nil, fmt.Errorf(
		"timeout waiting for lock after %v",
		time.Duration(lockRetries)*lockRetryDelay,
	)
}

// release closes and removes the lock file.
func (l *fileLock) release() error {
	if l.f != nil {
		l.f.Close()
	}
	return os.Remove(l.path)
}
