// Package lock wraps the single POSIX advisory lock
// (/var/lock/fbksd.lock) that serializes mutations to the data root
// between the RPC server and administrative tools. It is the only
// coordination primitive outside the database.
package lock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// FileLock is a scoped acquisition of the exclusive lock, guaranteeing
// release on every exit path including the function panicking.
type FileLock struct {
	fl *flock.Flock
}

// New opens (creating if necessary) the lock file at path.
func New(path string) *FileLock {
	return &FileLock{fl: flock.New(path)}
}

// WithLock blocks until the exclusive lock is acquired, runs fn, and
// releases the lock before returning — used by the RPC server around
// any compound operation that mutates D/public or D/tmp/workspace.
func (l *FileLock) WithLock(fn func() error) error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("lock: acquire %s: %w", l.fl.Path(), err)
	}
	defer l.fl.Unlock()
	return fn()
}

// WithTryLock attempts to acquire the lock without blocking. ok is false
// if another holder currently owns it. Used by administrative tools
// (update-scenes, trim) that must not block a concurrent benchmark run.
func (l *FileLock) WithTryLock(fn func() error) (ok bool, err error) {
	locked, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock: try-acquire %s: %w", l.fl.Path(), err)
	}
	if !locked {
		return false, nil
	}
	defer l.fl.Unlock()
	return true, fn()
}
