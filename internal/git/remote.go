package git

import (
	"context"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
)

// remoteURL returns the first URL of the configured remote.
func (r *Repo) remoteURL() (string, error) {
	remote, err := r.repo.Remote(r.mgr.opts.RemoteName)
	if err != nil {
		if errors.Is(err, gogit.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: remote %q not found", errors.ErrNoUpstream, r.mgr.opts.RemoteName)
		}
		return "", fmt.Errorf("failed to read remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: remote %q has no url", errors.ErrNoUpstream, r.mgr.opts.RemoteName)
	}
	return urls[0], nil
}

// Push pushes local branches to the remote.
func (r *Repo) Push(ctx context.Context, creds *auth.Credentials) error {
	url, err := r.remoteURL()
	if err != nil {
		return err
	}
	method, err := r.mgr.authMethod(url, creds)
	if err != nil {
		return err
	}

	err = r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: r.mgr.opts.RemoteName,
		Auth:       method,
	})
	if err == nil || errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	if errors.Is(err, gogit.ErrNonFastForwardUpdate) || strings.Contains(err.Error(), "non-fast-forward") {
		return fmt.Errorf("%w: %v", errors.ErrNonFastForward, err)
	}
	return classifyRemoteError(ctx, url, err)
}

// Pull fetches the current branch from the remote and fast-forwards it.
func (r *Repo) Pull(ctx context.Context, creds *auth.Credentials) error {
	url, err := r.remoteURL()
	if err != nil {
		return err
	}
	method, err := r.mgr.authMethod(url, creds)
	if err != nil {
		return err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	opts := &gogit.PullOptions{
		RemoteName: r.mgr.opts.RemoteName,
		Auth:       method,
	}
	if head, err := r.repo.Head(); err == nil && head.Name().IsBranch() {
		_, merge := r.upstreamOf(head.Name().Short())
		opts.ReferenceName = merge
	}

	err = w.PullContext(ctx, opts)
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, gogit.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %v", errors.ErrNonFastForward, err)
	case errors.Is(err, gogit.ErrUnstagedChanges):
		return fmt.Errorf("%w: %v", errors.ErrUncommittedChanges, err)
	}
	return classifyRemoteError(ctx, url, err)
}

// Sync pulls then pushes. A branch the remote does not have yet is only pushed.
func (r *Repo) Sync(ctx context.Context, creds *auth.Credentials) error {
	if err := r.Pull(ctx, creds); err != nil && !isMissingRemoteRef(err) {
		return err
	}
	return r.Push(ctx, creds)
}

func isMissingRemoteRef(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "couldn't find remote ref") ||
		strings.Contains(msg, "reference not found")
}

// upstreamOf returns the remote and remote branch tracked by branch. Without
// tracking config it assumes the same branch name on the default remote.
func (r *Repo) upstreamOf(branch string) (string, plumbing.ReferenceName) {
	cfg, err := r.repo.Config()
	if err == nil {
		if b, ok := cfg.Branches[branch]; ok && b.Remote != "" && b.Merge != "" {
			return b.Remote, b.Merge
		}
	}
	return r.mgr.opts.RemoteName, plumbing.NewBranchReferenceName(branch)
}

// PendingCommits lists commits on HEAD that the upstream does not have, most
// recent first. Without an upstream ref every commit on HEAD is pending.
func (r *Repo) PendingCommits(ctx context.Context) ([]CommitSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	head, err := r.repo.Head()
	if err != nil {
		return []CommitSummary{}, nil
	}
	if !head.Name().IsBranch() {
		return nil, fmt.Errorf("%w: HEAD is detached", errors.ErrNoUpstream)
	}

	remote, merge := r.upstreamOf(head.Name().Short())
	upstream := plumbing.NewRemoteReferenceName(remote, merge.Short())

	known := map[plumbing.Hash]bool{}
	if up, err := r.repo.Reference(upstream, true); err == nil {
		if err := r.walk(up.Hash(), func(c *object.Commit) { known[c.Hash] = true }); err != nil {
			return nil, err
		}
	}

	pending := []CommitSummary{}
	err = r.walk(head.Hash(), func(c *object.Commit) {
		if !known[c.Hash] {
			pending = append(pending, summarize(c))
		}
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *Repo) walk(from plumbing.Hash, fn func(c *object.Commit)) error {
	iter, err := r.repo.Log(&gogit.LogOptions{From: from, Order: gogit.LogOrderCommitterTime})
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()
	return iter.ForEach(func(c *object.Commit) error {
		fn(c)
		return nil
	})
}
