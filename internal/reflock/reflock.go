// Package reflock provides the exclusive-lock primitive the reftable
// stack uses to serialize commits to tables.list: whoever holds the
// lock file owns the right to append a new table and rewrite the
// manifest; everyone else must fail fast and retry after a reload.
package reflock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock wraps a single exclusive file lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// ErrLocked is returned by TryLock when another process or goroutine
// already holds the lock.
var ErrLocked = fmt.Errorf("reflock: already locked")

// New returns a Lock bound to path. path is typically the manifest's
// name with a ".lock" suffix; the lock file itself carries no content
// of interest, only its existence as an exclusive claim.
func New(path string) *Lock {
	return &Lock{path: path, fl: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. It returns
// ErrLocked if another holder currently has it.
func (l *Lock) TryLock() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("reflock: %s: %w", l.path, err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the lock. It is safe to call even if TryLock failed.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Path returns the underlying lock file path.
func (l *Lock) Path() string { return l.path }
