package git

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGitBinary skips when the file transport cannot run.
func requireGitBinary(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for file transport")
	}
}

// setupRemote creates a bare repository seeded with one commit and returns
// its path.
func setupRemote(t *testing.T) string {
	t.Helper()
	src, _ := setupTestRepo(t)

	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := gogit.PlainInit(bare, true)
	require.NoError(t, err)

	_, err = src.repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	require.NoError(t, src.Push(context.Background(), nil))
	return bare
}

func TestManager_Clone(t *testing.T) {
	requireGitBinary(t)
	remote := setupRemote(t)
	ctx := context.Background()
	mgr := NewManager(Options{})

	t.Run("into missing directory", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "clone")
		r, err := mgr.Clone(ctx, remote, dest, nil)
		require.NoError(t, err)
		defer r.Close()

		assert.True(t, IsGitRepo(dest))
		commits, err := r.Commits(ctx, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, commits, 1)
	})

	t.Run("into empty directory", func(t *testing.T) {
		dest := t.TempDir()
		r, err := mgr.Clone(ctx, remote, dest, nil)
		require.NoError(t, err)
		r.Close()
		assert.True(t, IsGitRepo(dest))
	})

	t.Run("unreachable remote leaves no directory", func(t *testing.T) {
		parent := t.TempDir()
		dest := filepath.Join(parent, "clone")
		_, err := mgr.Clone(ctx, filepath.Join(parent, "missing.git"), dest, nil)
		require.Error(t, err)
		assert.NoDirExists(t, dest)

		matches, _ := filepath.Glob(filepath.Join(parent, ".clone-*"))
		assert.Empty(t, matches)
	})
}

func TestRepo_PushPullPending(t *testing.T) {
	requireGitBinary(t)
	remote := setupRemote(t)
	ctx := context.Background()
	mgr := NewManager(Options{})

	a, err := mgr.Clone(ctx, remote, filepath.Join(t.TempDir(), "a"), nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := mgr.Clone(ctx, remote, filepath.Join(t.TempDir(), "b"), nil)
	require.NoError(t, err)
	defer b.Close()

	pending, err := a.PendingCommits(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	commitFile(t, a.(*Repo), "change.txt", "change\n", "add change")

	pending, err = a.PendingCommits(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "add change", pending[0].Message)

	require.NoError(t, a.Push(ctx, nil))
	pending, err = a.PendingCommits(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, b.Pull(ctx, nil))
	commits, err := b.Commits(ctx, "", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "add change", commits[0].Message)

	// Already up to date is not an error
	assert.NoError(t, b.Pull(ctx, nil))
	assert.NoError(t, b.Sync(ctx, nil))
}

func TestRepo_PushNonFastForward(t *testing.T) {
	requireGitBinary(t)
	remote := setupRemote(t)
	ctx := context.Background()
	mgr := NewManager(Options{})

	a, err := mgr.Clone(ctx, remote, filepath.Join(t.TempDir(), "a"), nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := mgr.Clone(ctx, remote, filepath.Join(t.TempDir(), "b"), nil)
	require.NoError(t, err)
	defer b.Close()

	commitFile(t, a.(*Repo), "a.txt", "a\n", "from a")
	require.NoError(t, a.Push(ctx, nil))

	commitFile(t, b.(*Repo), "b.txt", "b\n", "from b")
	err = b.Push(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrNonFastForward)
	assert.Equal(t, errors.KindRepositoryState, errors.KindOf(err))
}

func TestRepo_PendingWithoutUpstream(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	pending, err := r.PendingCommits(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	err = r.Push(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrNoUpstream)
}

func TestRepo_PendingDetachedHead(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()
	head, err := r.Commits(ctx, "", 1, 0)
	require.NoError(t, err)
	require.NoError(t, r.Checkout(ctx, head[0].Hash))

	_, err = r.PendingCommits(ctx)
	assert.ErrorIs(t, err, errors.ErrNoUpstream)
}

func TestClassifyRemoteError(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	tests := []struct {
		name string
		ctx  context.Context
		url  string
		err  error
		want errors.Kind
	}{
		{"deadline", expired, "https://example.com/r.git", context.DeadlineExceeded, errors.KindRemoteTimeout},
		{"http auth", context.Background(), "https://example.com/r.git", errors.New("authentication required"), errors.KindAuthRequired},
		{"ssh auth", context.Background(), "ssh://git@example.com/r.git", errors.New("ssh: unable to authenticate"), errors.KindAuthRequired},
		{"transport", context.Background(), "https://example.com/r.git", errors.New("connection refused"), errors.KindRemoteTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRemoteError(tt.ctx, tt.url, tt.err)
			assert.Equal(t, tt.want, errors.KindOf(err))
		})
	}
}

func TestClassifyRemoteErrorChallengeKind(t *testing.T) {
	ctx := context.Background()

	err := classifyRemoteError(ctx, "https://example.com/r.git", errors.New("authentication required"))
	ch, ok := auth.AsChallenge(err)
	require.True(t, ok)
	assert.Equal(t, "example.com", ch.Remote)
	assert.Len(t, ch.Fields, 2)

	err = classifyRemoteError(ctx, "ssh://git@example.com/r.git", errors.New("permission denied"))
	ch, ok = auth.AsChallenge(err)
	require.True(t, ok)
	assert.Len(t, ch.Fields, 1)
}
