package git

import (
	"context"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jayteealao/gitsvc/internal/errors"
)

// CurrentBranch returns the branch HEAD points to, or "" when detached.
// An unborn branch (no commits yet) is still reported.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "", nil
}

// Branches returns all local branch names sorted by name.
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	names := []string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CreateBranch creates a branch at the current HEAD commit.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, false); err == nil {
		return fmt.Errorf("%w: %s", errors.ErrBranchExists, name)
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("%w: HEAD has no commits", errors.ErrRefNotFound)
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

// DeleteBranch removes a local branch. The checked out branch cannot be deleted.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, false); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBranchNotFound, name)
	}

	current, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == name {
		return fmt.Errorf("%w: %s", errors.ErrDeleteActiveBranch, name)
	}

	if err := r.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}

	// Drop tracking config, if any
	cfg, err := r.repo.Config()
	if err == nil {
		if _, ok := cfg.Branches[name]; ok {
			delete(cfg.Branches, name)
			if err := r.repo.SetConfig(cfg); err != nil {
				return fmt.Errorf("failed to update branch config: %w", err)
			}
		}
	}
	return nil
}

// Checkout switches the working tree to a branch, tag, or commit. Tags and
// commits leave HEAD detached. Dirty tracked files block the checkout.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	for path, fs := range st {
		if isTrackedChange(fs.Staging) || isTrackedChange(fs.Worktree) {
			return fmt.Errorf("%w: %s", errors.ErrUncommittedChanges, path)
		}
	}

	target, err := r.resolveCommit(ref)
	if err != nil {
		return err
	}
	// Checkout resets the worktree to the target tree, so an untracked file
	// at a path the target tracks would be overwritten.
	tree, err := target.Tree()
	if err != nil {
		return fmt.Errorf("failed to read tree of %s: %w", ref, err)
	}
	for path, fs := range st {
		if fs.Worktree != gogit.Untracked {
			continue
		}
		if _, err := tree.File(path); err == nil {
			return fmt.Errorf("%w: untracked %s would be overwritten", errors.ErrUncommittedChanges, path)
		}
	}

	opts := &gogit.CheckoutOptions{}
	branchRef := plumbing.NewBranchReferenceName(ref)
	if _, err := r.repo.Reference(branchRef, false); err == nil {
		opts.Branch = branchRef
	} else {
		opts.Hash = target.Hash
	}

	if err := w.Checkout(opts); err != nil {
		if errors.Is(err, gogit.ErrUnstagedChanges) {
			return fmt.Errorf("%w: %v", errors.ErrUncommittedChanges, err)
		}
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return nil
}

func isTrackedChange(c gogit.StatusCode) bool {
	return c != gogit.Unmodified && c != gogit.Untracked
}
