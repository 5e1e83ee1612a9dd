package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FileLock is a cross-process lock guarding an index directory. Writers
// hold it exclusively while rebuilding; readers take it shared.
type FileLock struct {
	path  string
	flock *flock.Flock
}

// NewFileLock creates a lock backed by the file at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// LockContext acquires the exclusive lock, polling until ctx is done.
func (l *FileLock) LockContext(ctx context.Context) error {
	if err := l.ensureDir(); err != nil {
		return err
	}
	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire lock %s", l.path)
	}
	return nil
}

// TryRLock attempts a shared lock without blocking. It returns false when a
// writer holds the lock.
func (l *FileLock) TryRLock() (bool, error) {
	if err := l.ensureDir(); err != nil {
		return false, err
	}
	ok, err := l.flock.TryRLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire shared lock: %w", err)
	}
	return ok, nil
}

// Unlock releases whichever lock is held. Safe to call when unlocked.
func (l *FileLock) Unlock() error {
	if !l.flock.Locked() && !l.flock.RLocked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

func (l *FileLock) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	return nil
}
