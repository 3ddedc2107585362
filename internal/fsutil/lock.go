package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockTimeout is returned when the lock could not be taken before the
// deadline.
var ErrLockTimeout = errors.New("lock timeout")

// ErrLockUnsupported is returned on platforms without advisory file locks.
var ErrLockUnsupported = errors.New("file locking is unsupported on this platform")

const lockPollInterval = 10 * time.Millisecond

// FileLock is an exclusive advisory lock on a sidecar lock file.
// The lock lives as long as the descriptor stays open.
type FileLock struct {
	path string
	f    *os.File
}

// Lock acquires an exclusive lock on lockPath, polling until timeout.
// A zero timeout tries once.
func Lock(lockPath string, timeout time.Duration) (*FileLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		acquired, err := tryLock(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			return &FileLock{path: lockPath, f: f}, nil
		}
		if !time.Now().Before(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w", lockPath, ErrLockTimeout)
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *FileLock) Path() string { return l.path }

// Unlock releases the lock. Safe to call on a nil or released lock.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockFile(l.f)
	err := l.f.Close()
	l.f = nil
	return err
}
