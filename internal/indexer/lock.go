package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// staleLockAge is the age past which a held lock is reclaimed (spec.md
// §5: "stale locks older than 1 hour are reclaimed").
const staleLockAge = time.Hour

// RunLock is a best-effort, per-project advisory lock guaranteeing a
// single writer for HashCache and ProjectMetadata (spec.md §5). Backed by
// github.com/gofrs/flock rather than a hand-rolled pidfile scheme.
type RunLock struct {
	flock *flock.Flock
	path  string
}

// Acquire takes the lock for projectPath's metadata directory, reclaiming
// a stale lock (older than staleLockAge) left behind by a crashed run.
// Returns an error if another live process already holds it.
func Acquire(projectPath string) (*RunLock, error) {
	dir := filepath.Join(projectPath, ".context")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("indexer: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "run.lock")

	reclaimStaleLock(path)

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("indexer: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("indexer: another run already holds the lock at %s", path)
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("indexer: write lock metadata: %w", err)
	}

	return &RunLock{flock: fl, path: path}, nil
}

// Release unlocks and removes the lock file.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("indexer: release lock: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}

// reclaimStaleLock removes the lock file if its modification time is
// older than staleLockAge. Age alone decides: a file still locked by a
// live run that has held it that long is removed too, and the TryLock
// that follows then locks a fresh file at the same path.
func reclaimStaleLock(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) > staleLockAge {
		_ = os.Remove(path)
	}
}
