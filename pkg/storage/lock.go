package storage

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
)

// lockPollInterval is how often Acquire retries TryLockContext while
// waiting for a contended lock to free up.
const lockPollInterval = 25 * time.Millisecond

// Lock wraps a cross-process advisory file lock on a sentinel file inside
// the state directory. It serializes the "critical section" of compound
// operations across concurrent taskctl invocations; single-row reads and
// writes rely on SQLite's own concurrency instead.
type Lock struct {
	path string
	fl   *flock.Flock
}

// NewLock creates a Lock bound to the given sentinel file path. The file is
// created on first Acquire if it does not exist.
func NewLock(path string) *Lock {
	return &Lock{path: path, fl: flock.New(path)}
}

// Acquire blocks until the lock is held or ctx is done, polling at
// lockPollInterval. It returns ok=false (no error) on a context deadline, so
// callers can translate that into apperrors.LockTimeout. heldBy is the PID
// recorded by the previous holder when one can be determined.
func (l *Lock) Acquire(ctx context.Context) (heldBy string, ok bool, err error) {
	locked, lockErr := l.fl.TryLockContext(ctx, lockPollInterval)
	if lockErr != nil {
		if ctx.Err() != nil {
			return readHolder(l.path), false, nil
		}
		return "", false, lockErr
	}
	if !locked {
		return readHolder(l.path), false, nil
	}
	// Record our own PID so a concurrent waiter can report who holds it.
	_ = os.WriteFile(l.path+".holder", []byte(strconv.Itoa(os.Getpid())), 0o644)
	return "", true, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}

func readHolder(path string) string {
	data, err := os.ReadFile(path + ".holder")
	if err != nil {
		return ""
	}
	return string(data)
}
