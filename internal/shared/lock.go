package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RootLock is an advisory lock that keeps two runs from sorting the same tree.
//
// The lock file lives in the OS temp directory so it is never part of the tree being sorted.
type RootLock struct {
	lock *flock.Flock
}

// LockPath returns the lock file used for root.
func LockPath(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(os.TempDir(), "datesort-"+hex.EncodeToString(sum[:8])+".lock")
}

// LockRoot acquires the lock for root without blocking.
// It returns [ErrRootLocked] when another process holds it.
func LockRoot(root string) (*RootLock, error) {
	lock := flock.New(LockPath(root))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", root, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootLocked, root)
	}
	return &RootLock{lock: lock}, nil
}

// Unlock releases the lock. The lock file stays behind: removing it would let a
// waiting process hold a lock on an unlinked inode while a third locks a new file.
func (l *RootLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
