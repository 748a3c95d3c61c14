package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/events"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/lock"
	"github.com/jayteealao/gitsvc/internal/state"
)

// --- Fake Implementations ---

// fakeEngine implements git.Engine over in-memory repositories.
type fakeEngine struct {
	mu    sync.Mutex
	repos map[string]*fakeRepo

	cloneFn func(ctx context.Context, url, root string, creds *auth.Credentials) error
	opens   int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{repos: make(map[string]*fakeRepo)}
}

func (e *fakeEngine) add(root string) *fakeRepo {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := newFakeRepo(root)
	e.repos[root] = r
	return r
}

func (e *fakeEngine) Init(ctx context.Context, root string) (git.Repository, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.repos[root]; ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrRepoExists, root)
	}
	r := newFakeRepo(root)
	e.repos[root] = r
	return r, nil
}

func (e *fakeEngine) Clone(ctx context.Context, url, root string, creds *auth.Credentials) (git.Repository, error) {
	if e.cloneFn != nil {
		if err := e.cloneFn(ctx, url, root, creds); err != nil {
			return nil, err
		}
	}
	return e.add(root), nil
}

func (e *fakeEngine) Open(ctx context.Context, root string) (git.Repository, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opens++
	r, ok := e.repos[root]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotGitRepo, root)
	}
	return r, nil
}

// fakeRepo implements git.Repository. Behavior is overridden per test via
// the function fields.
type fakeRepo struct {
	root     string
	mu       sync.Mutex
	branch   string
	branches []string
	identity git.Identity
	commits  []git.CommitSummary

	commitFn func(opts git.CommitOptions) (string, error)
	remoteFn func(ctx context.Context, creds *auth.Credentials) error
	hookFn   func(ctx context.Context)

	lastCommit git.CommitOptions
	remoteSeen []*auth.Credentials
	checkouts  []string
	closed     int32
}

func newFakeRepo(root string) *fakeRepo {
	return &fakeRepo{root: root, branch: "main", branches: []string{"main"}}
}

func (r *fakeRepo) hook(ctx context.Context) {
	if r.hookFn != nil {
		r.hookFn(ctx)
	}
}

func (r *fakeRepo) Root() string { return r.root }

func (r *fakeRepo) Status(ctx context.Context) (*git.Status, error) {
	r.hook(ctx)
	return &git.Status{Branch: r.branch, Clean: true, Files: []git.FileStatus{}}, nil
}

func (r *fakeRepo) Identity(ctx context.Context) (git.Identity, error) {
	if !r.identity.Valid() {
		return git.Identity{}, errors.ErrIdentityUnavailable
	}
	return r.identity, nil
}

func (r *fakeRepo) Commit(ctx context.Context, opts git.CommitOptions) (string, error) {
	r.hook(ctx)
	r.mu.Lock()
	r.lastCommit = opts
	r.mu.Unlock()
	if r.commitFn != nil {
		return r.commitFn(opts)
	}
	return "0123456789abcdef0123456789abcdef01234567", nil
}

func (r *fakeRepo) Commits(ctx context.Context, ref string, limit, skip int) ([]git.CommitSummary, error) {
	r.hook(ctx)
	out := r.commits
	if skip < len(out) {
		out = out[skip:]
	} else {
		out = nil
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return append([]git.CommitSummary{}, out...), nil
}

func (r *fakeRepo) CurrentBranch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.branch, nil
}

func (r *fakeRepo) Branches(ctx context.Context) ([]string, error) {
	r.hook(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.branches...), nil
}

func (r *fakeRepo) CreateBranch(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b == name {
			return fmt.Errorf("%w: %s", errors.ErrBranchExists, name)
		}
	}
	r.branches = append(r.branches, name)
	return nil
}

func (r *fakeRepo) DeleteBranch(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.branch {
		return fmt.Errorf("%w: %s", errors.ErrDeleteActiveBranch, name)
	}
	for i, b := range r.branches {
		if b == name {
			r.branches = append(r.branches[:i], r.branches[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errors.ErrBranchNotFound, name)
}

func (r *fakeRepo) Checkout(ctx context.Context, ref string) error {
	r.hook(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b == ref {
			r.branch = ref
			r.checkouts = append(r.checkouts, ref)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errors.ErrRefNotFound, ref)
}

func (r *fakeRepo) PendingCommits(ctx context.Context) ([]git.CommitSummary, error) {
	return append([]git.CommitSummary{}, r.commits...), nil
}

func (r *fakeRepo) Diff(ctx context.Context, oldRef, newRef string) ([]git.FileDiff, error) {
	if oldRef != "" && oldRef == newRef {
		return []git.FileDiff{}, nil
	}
	return []git.FileDiff{{Path: "README.md", Status: git.DiffModified, Additions: 1}}, nil
}

func (r *fakeRepo) remote(ctx context.Context, creds *auth.Credentials) error {
	r.hook(ctx)
	r.mu.Lock()
	r.remoteSeen = append(r.remoteSeen, creds)
	r.mu.Unlock()
	if r.remoteFn != nil {
		return r.remoteFn(ctx, creds)
	}
	return nil
}

func (r *fakeRepo) Push(ctx context.Context, creds *auth.Credentials) error { return r.remote(ctx, creds) }
func (r *fakeRepo) Pull(ctx context.Context, creds *auth.Credentials) error { return r.remote(ctx, creds) }
func (r *fakeRepo) Sync(ctx context.Context, creds *auth.Credentials) error { return r.remote(ctx, creds) }

func (r *fakeRepo) Close() error {
	atomic.AddInt32(&r.closed, 1)
	return nil
}

// fakeJournal implements state.Journal in memory.
type fakeJournal struct {
	mu      sync.Mutex
	started []string
	records map[string]*state.Operation
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{records: make(map[string]*state.Operation)}
}

func (j *fakeJournal) StartOperation(ctx context.Context, repoPath, verb string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id := fmt.Sprintf("op-%d", len(j.started)+1)
	j.started = append(j.started, id)
	j.records[id] = &state.Operation{ID: id, RepoPath: repoPath, Verb: verb, Status: state.StatusRunning}
	return id, nil
}

func (j *fakeJournal) FinishOperation(ctx context.Context, id, status, errorKind, errorMessage string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	op, ok := j.records[id]
	if !ok {
		return errors.ErrOperationNotFound
	}
	op.Status, op.ErrorKind, op.ErrorMessage = status, errorKind, errorMessage
	return nil
}

func (j *fakeJournal) last() *state.Operation {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.started) == 0 {
		return nil
	}
	return j.records[j.started[len(j.started)-1]]
}

// countingSequencer wraps a lock.Sequencing and counts acquisitions.
type countingSequencer struct {
	inner  lock.Sequencing
	reads  int32
	writes int32
}

func (c *countingSequencer) Read(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	atomic.AddInt32(&c.reads, 1)
	return c.inner.Read(ctx, path, fn)
}

func (c *countingSequencer) Write(ctx context.Context, path string, fn func(ctx context.Context) error) error {
	atomic.AddInt32(&c.writes, 1)
	return c.inner.Write(ctx, path, fn)
}

func (c *countingSequencer) total() int32 {
	return atomic.LoadInt32(&c.reads) + atomic.LoadInt32(&c.writes)
}

// recorder collects every event emitted on a bus.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(events.All, func(ctx context.Context, e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	})
	return r
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
