// Package lock sequences repository operations within a process and,
// optionally, across processes with PID-based stale detection.
package lock

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/zeebo/blake3"
)

const retryDelay = 50 * time.Millisecond

// FileLock is a held cross-process lock on one repository path.
type FileLock struct {
	flock     *flock.Flock
	pidFile   string
	key       string
	exclusive bool
}

// Manager manages cross-process repository locks under a lock directory.
type Manager struct {
	lockDir string
}

// NewManager creates a new lock manager storing lock files in dataDir/locks.
func NewManager(dataDir string) (*Manager, error) {
	lockDir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(lockDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{lockDir: lockDir}, nil
}

// paths returns the lock and PID file for key. Keys are repository paths, so
// they are hashed to a fixed-length file name.
func (m *Manager) paths(key string) (lockPath, pidFile string) {
	sum := blake3.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:16])
	return filepath.Join(m.lockDir, name+".lock"), filepath.Join(m.lockDir, name+".pid")
}

// Acquire waits for the lock on key. Shared locks may be held by many
// processes at once; an exclusive lock excludes all others. When ctx expires
// while another process holds the lock the error wraps ErrRepoLocked.
func (m *Manager) Acquire(ctx context.Context, key string, exclusive bool) (*FileLock, error) {
	lockPath, pidFile := m.paths(key)

	// Check for stale lock
	m.cleanStalePID(pidFile)

	fl := flock.New(lockPath)

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, retryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, retryDelay)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if pid, perr := readPIDFile(pidFile); perr == nil {
				return nil, fmt.Errorf("%w: %s held by PID %d", errors.ErrRepoLocked, key, pid)
			}
			return nil, fmt.Errorf("%w: %s", errors.ErrRepoLocked, key)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errors.ErrRepoLocked, key)
	}

	// Only the writer records its PID
	if exclusive {
		if err := writePIDFile(pidFile); err != nil {
			fl.Unlock()
			return nil, fmt.Errorf("failed to write PID file: %w", err)
		}
	}

	return &FileLock{flock: fl, pidFile: pidFile, key: key, exclusive: exclusive}, nil
}

// IsLocked reports whether a writer in any process holds key, and its PID
// when known.
func (m *Manager) IsLocked(key string) (bool, int, error) {
	lockPath, pidFile := m.paths(key)

	fl := flock.New(lockPath)

	// A shared lock succeeds unless a writer holds the file
	locked, err := fl.TryRLock()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		fl.Unlock()
		return false, 0, nil
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		return true, 0, nil // Locked but unknown PID
	}
	return true, pid, nil
}

// InUse reports whether any process holds key, reader or writer.
func (m *Manager) InUse(key string) (bool, error) {
	lockPath, _ := m.paths(key)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		fl.Unlock()
		return false, nil
	}
	return true, nil
}

// cleanStalePID removes a PID file left behind by a dead process. The lock
// file itself stays: flock state dies with the process.
func (m *Manager) cleanStalePID(pidFile string) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return
	}
	if !isProcessRunning(pid) {
		os.Remove(pidFile)
	}
}

// Release releases the lock. The lock file is kept so concurrent holders of a
// shared lock keep locking the same inode.
func (l *FileLock) Release() error {
	if l.exclusive {
		os.Remove(l.pidFile)
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Key returns the key this lock was acquired for.
func (l *FileLock) Key() string {
	return l.key
}

// Exclusive reports whether this is a writer lock.
func (l *FileLock) Exclusive() bool {
	return l.exclusive
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds; signal 0 checks for existence.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "process already finished") ||
		strings.Contains(errStr, "no such process") ||
		strings.Contains(errStr, "Access is denied") {
		return false
	}

	// Can't tell, assume alive
	return true
}
