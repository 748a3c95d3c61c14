package lock

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jayteealao/gitsvc/internal/errors"
	"golang.org/x/sync/semaphore"
)

// writerWeight is the full weight of a path semaphore. A writer takes all of
// it, a reader takes one, so at most writerWeight-1 readers run together.
const writerWeight = 1 << 16

// Sequencer serializes operations per repository path: many readers or one
// writer, admitted in arrival order. Different paths never contend.
type Sequencer struct {
	mu    sync.Mutex
	paths map[string]*pathLock
	files LockOperations
	log   *slog.Logger
}

type pathLock struct {
	sem  *semaphore.Weighted
	refs int
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithFileLocks additionally takes a cross-process lock for every operation.
func WithFileLocks(m LockOperations) SequencerOption {
	return func(s *Sequencer) { s.files = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SequencerOption {
	return func(s *Sequencer) { s.log = l }
}

// NewSequencer creates a sequencer.
func NewSequencer(opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		paths: make(map[string]*pathLock),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read runs fn holding a shared lock on path.
func (s *Sequencer) Read(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	return s.run(ctx, path, false, fn)
}

// Write runs fn holding the exclusive lock on path.
func (s *Sequencer) Write(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	return s.run(ctx, path, true, fn)
}

func (s *Sequencer) run(ctx context.Context, path string, exclusive bool, fn func(ctx context.Context) error) error {
	key, err := Key(path)
	if err != nil {
		return err
	}

	weight := int64(1)
	if exclusive {
		weight = writerWeight
	}

	pl := s.ref(key)
	defer s.unref(key)

	if err := pl.sem.Acquire(ctx, weight); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", errors.ErrRepoLocked, key)
		}
		return fmt.Errorf("waiting for repository lock: %w", err)
	}
	defer pl.sem.Release(weight)

	if s.files != nil {
		fl, err := s.files.Acquire(ctx, key, exclusive)
		if err != nil {
			return err
		}
		defer func() {
			if err := fl.Release(); err != nil {
				s.log.Warn("failed to release file lock", "path", key, "error", err)
			}
		}()
	}

	s.log.Debug("lock acquired", "path", key, "exclusive", exclusive)
	return fn(ctx)
}

func (s *Sequencer) ref(key string) *pathLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.paths[key]
	if !ok {
		pl = &pathLock{sem: semaphore.NewWeighted(writerWeight)}
		s.paths[key] = pl
	}
	pl.refs++
	return pl
}

func (s *Sequencer) unref(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl := s.paths[key]
	pl.refs--
	if pl.refs == 0 {
		delete(s.paths, key)
	}
}

// tracked returns the number of paths with holders or waiters.
func (s *Sequencer) tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Key normalizes a repository path so that equivalent spellings share a lock.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
