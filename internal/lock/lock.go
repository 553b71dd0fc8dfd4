package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// TargetLock serializes destructive work against one destination across
// processes on this host.
type TargetLock struct {
	fl     *flock.Flock
	path   string
	target string
}

// ForTarget returns a lock at <tmp>/schemaclone_<hash>.lock, where the hash
// covers the normalized target identity (base URL or direct link).
func ForTarget(target string) *TargetLock {
	norm := strings.ToLower(strings.TrimRight(strings.TrimSpace(target), "/"))
	sum := sha256.Sum256([]byte(norm))
	name := filepath.Join(os.TempDir(), fmt.Sprintf("schemaclone_%s.lock", hex.EncodeToString(sum[:8])))
	return &TargetLock{fl: flock.New(name), path: name, target: norm}
}

// TryLock attempts a non-blocking lock.
func (l *TargetLock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Acquire is TryLock with a descriptive error when the lock is held.
func (l *TargetLock) Acquire() error {
	ok, err := l.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("another schemaclone process is working on %s (lock %s)", l.target, l.path)
	}
	return nil
}

// Unlock releases the lock and removes the lock file.
func (l *TargetLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	_ = os.Remove(l.path)
	return nil
}

// Path returns the lock file location.
func (l *TargetLock) Path() string { return l.path }
