package lock

import "context"

// Sequencing defines scoped per-path locking used by the command service.
type Sequencing interface {
	Read(ctx context.Context, path string, fn func(ctx context.Context) error) error
	Write(ctx context.Context, path string, fn func(ctx context.Context) error) error
}

// LockOperations defines the interface for cross-process lock management.
type LockOperations interface {
	Acquire(ctx context.Context, key string, exclusive bool) (*FileLock, error)
	IsLocked(key string) (bool, int, error)
	InUse(key string) (bool, error)
}

// Ensure Sequencer implements Sequencing
var _ Sequencing = (*Sequencer)(nil)

// Ensure Manager implements LockOperations
var _ LockOperations = (*Manager)(nil)
