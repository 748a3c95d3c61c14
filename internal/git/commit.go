package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/jayteealao/gitsvc/internal/errors"
)

// Status returns the working tree status with files sorted by path.
func (r *Repo) Status(ctx context.Context) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	result := &Status{Branch: branch, Clean: st.IsClean(), Files: []FileStatus{}}
	for path, fs := range st {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		result.Files = append(result.Files, FileStatus{
			Path:     path,
			Staging:  statusCodeName(fs.Staging),
			Worktree: statusCodeName(fs.Worktree),
		})
	}
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result, nil
}

func statusCodeName(c gogit.StatusCode) string {
	switch c {
	case gogit.Unmodified:
		return "unmodified"
	case gogit.Untracked:
		return "untracked"
	case gogit.Modified:
		return "modified"
	case gogit.Added:
		return "added"
	case gogit.Deleted:
		return "deleted"
	case gogit.Renamed:
		return "renamed"
	case gogit.Copied:
		return "copied"
	case gogit.UpdatedButUnmerged:
		return "conflict"
	default:
		return "unknown"
	}
}

// Identity returns the user configured for the repository, local config
// taking precedence over global config.
func (r *Repo) Identity(ctx context.Context) (Identity, error) {
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		cfg, err = r.repo.Config()
		if err != nil {
			return Identity{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	id := Identity{Name: cfg.User.Name, Email: cfg.User.Email}
	if !id.Valid() {
		return Identity{}, errors.ErrIdentityUnavailable
	}
	return id, nil
}

// Commit stages the requested paths (every changed path when none are
// given) and records a commit. Returns the new commit hash.
func (r *Repo) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}

	paths := opts.Files
	if len(paths) == 0 {
		for p, fs := range st {
			if fs.Worktree != gogit.Unmodified || fs.Staging != gogit.Unmodified {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
	}

	// Reject unknown paths before touching the index.
	for _, p := range paths {
		if _, ok := st[p]; ok {
			continue
		}
		if _, err := os.Lstat(filepath.Join(r.root, filepath.FromSlash(p))); err != nil {
			return "", fmt.Errorf("%w: cannot stage %q: no such file", errors.ErrInvalidArgument, p)
		}
	}

	for _, p := range paths {
		fs, ok := st[p]
		if ok {
			switch fs.Worktree {
			case gogit.Unmodified:
				continue
			case gogit.Deleted:
				if _, err := w.Remove(p); err != nil {
					return "", fmt.Errorf("failed to stage removal of %s: %w", p, err)
				}
				continue
			}
		}
		if _, err := w.Add(p); err != nil {
			return "", fmt.Errorf("%w: cannot stage %q: %v", errors.ErrInvalidArgument, p, err)
		}
	}

	st, err = w.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	staged := false
	for _, fs := range st {
		if fs.Staging != gogit.Unmodified && fs.Staging != gogit.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return "", errors.ErrNothingToCommit
	}

	hash, err := w.Commit(opts.Message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  opts.Author.Name,
			Email: opts.Author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	r.mgr.opts.Logger.Debug("created commit", "root", r.root, "hash", ShortSHA(hash.String()))
	return hash.String(), nil
}

// Commits lists commits reachable from ref (HEAD when empty), most recent
// first, skipping skip commits and returning at most limit (0 = no limit).
func (r *Repo) Commits(ctx context.Context, ref string, limit, skip int) ([]CommitSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref == "" {
		if !r.hasCommits() {
			return []CommitSummary{}, nil
		}
		ref = "HEAD"
	}
	start, err := r.resolveCommit(ref)
	if err != nil {
		return nil, err
	}

	iter, err := r.repo.Log(&gogit.LogOptions{From: start.Hash, Order: gogit.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	commits := []CommitSummary{}
	seen := 0
	err = iter.ForEach(func(c *object.Commit) error {
		seen++
		if seen <= skip {
			return nil
		}
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, summarize(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk log: %w", err)
	}
	return commits, nil
}

// resolveCommit resolves a branch, tag, or commit identifier to a commit.
func (r *Repo) resolveCommit(ref string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrRefNotFound, ref)
	}
	if c, err := r.repo.CommitObject(*hash); err == nil {
		return c, nil
	}
	if tag, err := r.repo.TagObject(*hash); err == nil {
		if c, err := tag.Commit(); err == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errors.ErrRefNotFound, ref)
}

func (r *Repo) hasCommits() bool {
	_, err := r.repo.Head()
	return err == nil
}

func summarize(c *object.Commit) CommitSummary {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return CommitSummary{
		Hash:        c.Hash.String(),
		ShortHash:   ShortSHA(c.Hash.String()),
		Message:     strings.TrimRight(c.Message, "\n"),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Time:        c.Author.When,
		Parents:     parents,
	}
}
