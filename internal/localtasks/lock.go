package localtasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLockTTL bounds how long a write lock is honored before it is
// considered abandoned (e.g. the holding process crashed mid-mutation).
const DefaultLockTTL = 5 * time.Minute

// writeLockFile is a directory-scoped lock guarding CreateTask/UpdateTask/
// DeleteTask against concurrent writers from other processes sharing the
// same task directory. Unlike the Sync-State Store's per-syncPair flock
// (which guards one reconciliation run), this lock is held only for the
// duration of a single mutation.
type writeLockFile struct {
	Holder    string
	ClaimedAt time.Time
	ExpiresAt time.Time
}

func lockFilePath(dir string) string {
	return filepath.Join(dir, ".write.lock")
}

// acquireWriteLock blocks briefly, retrying until ttl passes, to take the
// directory write lock. A lock past its ExpiresAt is treated as abandoned
// and silently reclaimed.
func acquireWriteLock(dir, holder string) (release func() error, err error) {
	path := lockFilePath(dir)
	deadline := time.Now().Add(DefaultLockTTL)

	for {
		existing, err := readWriteLock(path)
		if err != nil {
			return nil, err
		}
		if existing == nil || !existing.isActive() {
			now := time.Now().UTC()
			lock := &writeLockFile{Holder: holder, ClaimedAt: now, ExpiresAt: now.Add(DefaultLockTTL)}
			if err := writeWriteLock(path, lock); err != nil {
				return nil, err
			}
			return func() error {
				return removeWriteLock(path)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("localtasks: directory %q locked by %q since %s", dir, existing.Holder, existing.ClaimedAt)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *writeLockFile) isActive() bool {
	return time.Now().UTC().Before(l.ExpiresAt)
}

func readWriteLock(path string) (*writeLockFile, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localtasks: read lock file: %w", err)
	}
	return parseWriteLock(content)
}

func writeWriteLock(path string, lock *writeLockFile) error {
	content := formatWriteLock(lock)
	return os.WriteFile(path, []byte(content), 0o644)
}

func removeWriteLock(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func parseWriteLock(content []byte) (*writeLockFile, error) {
	lock := &writeLockFile{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "holder:"):
			lock.Holder = strings.TrimSpace(strings.TrimPrefix(line, "holder:"))
		case strings.HasPrefix(line, "claimed_at:"):
			ts := strings.TrimSpace(strings.TrimPrefix(line, "claimed_at:"))
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("localtasks: invalid claimed_at timestamp: %w", err)
			}
			lock.ClaimedAt = t
		case strings.HasPrefix(line, "expires_at:"):
			ts := strings.TrimSpace(strings.TrimPrefix(line, "expires_at:"))
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("localtasks: invalid expires_at timestamp: %w", err)
			}
			lock.ExpiresAt = t
		}
	}
	return lock, nil
}

func formatWriteLock(lock *writeLockFile) string {
	return fmt.Sprintf("holder: %s\nclaimed_at: %s\nexpires_at: %s\n",
		lock.Holder,
		lock.ClaimedAt.Format(time.RFC3339),
		lock.ExpiresAt.Format(time.RFC3339))
}
