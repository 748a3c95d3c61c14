package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jayteealao/gitsvc/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestSequencer_WritersSerialize(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Write(ctx, "/srv/repo", func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, s.tracked())
}

func TestSequencer_ReadersRunTogether(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Read(ctx, "/srv/repo", func(context.Context) error {
				entered <- struct{}{}
				<-release
				return nil
			})
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatal("readers did not run concurrently")
		}
	}
	close(release)
	wg.Wait()
}

func TestSequencer_FIFOAdmission(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	hold := make(chan struct{})
	started := make(chan struct{})
	go s.Write(ctx, "/srv/repo", func(context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started

	// Queue a writer, then a reader; the reader must not overtake the writer.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Write(ctx, "/srv/repo", record("writer")) }()
	time.Sleep(20 * time.Millisecond)
	go func() { defer wg.Done(); s.Read(ctx, "/srv/repo", record("reader")) }()
	time.Sleep(20 * time.Millisecond)

	close(hold)
	wg.Wait()
	assert.Equal(t, []string{"writer", "reader"}, order)
}

func TestSequencer_DifferentPathsIndependent(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	hold := make(chan struct{})
	started := make(chan struct{})
	go s.Write(ctx, "/srv/a", func(context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started
	defer close(hold)

	done := make(chan error, 1)
	go func() { done <- s.Write(ctx, "/srv/b", noop) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write on another path was blocked")
	}
}

func TestSequencer_ReleasedOnErrorAndPanic(t *testing.T) {
	s := NewSequencer()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Write(ctx, "/srv/repo", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		s.Write(ctx, "/srv/repo", func(context.Context) error { panic("bad") })
	})

	// The lock is free again
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Write(ctx, "/srv/repo", noop))
	assert.Equal(t, 0, s.tracked())
}

func TestSequencer_CancelledWaiter(t *testing.T) {
	s := NewSequencer()

	hold := make(chan struct{})
	started := make(chan struct{})
	go s.Write(context.Background(), "/srv/repo", func(context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ran := false
	err := s.Read(ctx, "/srv/repo", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrRepoLocked)
	assert.Equal(t, apperrors.KindRepositoryState, apperrors.KindOf(err))
	assert.False(t, ran)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	err = s.Read(cancelled, "/srv/repo", noop)
	assert.ErrorIs(t, err, context.Canceled)

	close(hold)
	require.NoError(t, s.Read(context.Background(), "/srv/repo", noop))
}

func TestSequencer_PathSpellingsShareLock(t *testing.T) {
	a, err := Key("/srv/repo/../repo/")
	require.NoError(t, err)
	b, err := Key("/srv/repo")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSequencer_WithFileLocks(t *testing.T) {
	manager := setupTestManager(t)
	s := NewSequencer(WithFileLocks(manager))
	ctx := context.Background()

	err := s.Write(ctx, "/srv/repo", func(context.Context) error {
		locked, _, err := manager.IsLocked("/srv/repo")
		require.NoError(t, err)
		assert.True(t, locked)
		return nil
	})
	require.NoError(t, err)

	locked, _, err := manager.IsLocked("/srv/repo")
	require.NoError(t, err)
	assert.False(t, locked)
}
