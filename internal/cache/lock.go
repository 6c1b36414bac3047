package cache

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
)

// mirrorLock is a per-mirror exclusive advisory lock implemented with
// flock(2). The lock is held by keeping the file descriptor open; a caller
// that finds the lock held blocks until the holder releases it.
type mirrorLock struct {
	path string
	f    *os.File
}

// acquireLock takes the exclusive lock at lockPath, blocking while another
// process holds it.
func acquireLock(lockPath string) (*mirrorLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, eris.Wrapf(err, "failed to create lock directory: %s", filepath.Dir(lockPath))
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open lock file: %s", lockPath)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "failed to acquire lock: %s", lockPath)
	}

	return &mirrorLock{path: lockPath, f: f}, nil
}

func (l *mirrorLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
