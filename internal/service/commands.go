package service

import (
	"context"
	"fmt"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/events"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/validate"
)

// CloneArgs are the arguments of clone.
type CloneArgs struct {
	URL  string            `json:"url"`
	Auth *auth.Credentials `json:"auth,omitempty"`
}

// RemoteArgs are the arguments of sync, push and pull.
type RemoteArgs struct {
	Auth *auth.Credentials `json:"auth,omitempty"`
}

// CommitArgs are the arguments of commit. Name and Email override the
// repository identity only when both are set.
type CommitArgs struct {
	Message string   `json:"message"`
	Files   []string `json:"files,omitempty"`
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
}

// CommitsArgs are the arguments of commits. Limit 0 means no limit.
type CommitsArgs struct {
	Ref   string `json:"ref,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Skip  int    `json:"skip,omitempty"`
}

// BranchArgs are the arguments of branch_create and branch_delete.
type BranchArgs struct {
	Name string `json:"name"`
}

// CheckoutArgs are the arguments of checkout.
type CheckoutArgs struct {
	Ref string `json:"ref"`
}

// DiffArgs are the arguments of diff.
type DiffArgs struct {
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`
}

// BranchSummary is one entry of a branch listing.
type BranchSummary struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CommitResult describes a new commit.
type CommitResult struct {
	Hash      string       `json:"hash"`
	ShortHash string       `json:"short_hash"`
	Author    git.Identity `json:"author"`
}

// RemoteResult describes a completed push, pull or sync.
type RemoteResult struct {
	Branch string `json:"branch"`
}

// PendingResult lists commits the upstream does not have yet.
type PendingResult struct {
	Count   int                 `json:"count"`
	Commits []git.CommitSummary `json:"commits"`
}

// Init creates a repository at the workspace root.
func (s *Service) Init(ctx context.Context, ws Workspace) (*git.Status, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}

	var status *git.Status
	err = s.run(ctx, VerbInit, root, true, func(ctx context.Context) error {
		h, err := s.handles.Init(ctx, root)
		if err != nil {
			return err
		}
		if status, err = h.Status(ctx); err != nil {
			return err
		}
		s.emit(ctx, events.GitInit, root, nil)
		return nil
	})
	return status, err
}

// Clone clones a remote repository into the workspace root.
func (s *Service) Clone(ctx context.Context, ws Workspace, args CloneArgs) (*git.Status, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}
	if err := validate.RepoURL(args.URL); err != nil {
		return nil, err
	}

	var status *git.Status
	err = s.run(ctx, VerbClone, root, true, func(ctx context.Context) error {
		var h git.Repository
		err := s.remote(ctx, args.Auth, func(ctx context.Context, creds *auth.Credentials) error {
			var err error
			h, err = s.handles.Clone(ctx, args.URL, root, creds)
			return err
		})
		if err != nil {
			return err
		}
		if status, err = h.Status(ctx); err != nil {
			return err
		}
		s.emit(ctx, events.GitClone, root, map[string]any{"url": args.URL})
		return nil
	})
	return status, err
}

// Status reports the working tree status.
func (s *Service) Status(ctx context.Context, ws Workspace) (*git.Status, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}

	var status *git.Status
	err = s.run(ctx, VerbStatus, root, false, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		status, err = h.Status(ctx)
		return err
	})
	return status, err
}

// Sync pulls from and then pushes to the upstream.
func (s *Service) Sync(ctx context.Context, ws Workspace, args RemoteArgs) (*RemoteResult, error) {
	return s.remoteCommand(ctx, ws, VerbSync, events.GitSync, args, git.Repository.Sync)
}

// Push pushes local branches to the upstream.
func (s *Service) Push(ctx context.Context, ws Workspace, args RemoteArgs) (*RemoteResult, error) {
	return s.remoteCommand(ctx, ws, VerbPush, events.GitPush, args, git.Repository.Push)
}

// Pull fast-forwards the current branch from the upstream.
func (s *Service) Pull(ctx context.Context, ws Workspace, args RemoteArgs) (*RemoteResult, error) {
	return s.remoteCommand(ctx, ws, VerbPull, events.GitPull, args, git.Repository.Pull)
}

func (s *Service) remoteCommand(
	ctx context.Context,
	ws Workspace,
	verb, event string,
	args RemoteArgs,
	op func(git.Repository, context.Context, *auth.Credentials) error,
) (*RemoteResult, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}

	var result *RemoteResult
	err = s.run(ctx, verb, root, true, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		err = s.remote(ctx, args.Auth, func(ctx context.Context, creds *auth.Credentials) error {
			return op(h, ctx, creds)
		})
		if err != nil {
			return err
		}
		branch, err := h.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		result = &RemoteResult{Branch: branch}
		s.emit(ctx, event, root, map[string]any{"branch": branch})
		return nil
	})
	return result, err
}

// Commit stages the requested files, or every change, and commits them.
func (s *Service) Commit(ctx context.Context, ws Workspace, args CommitArgs) (*CommitResult, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}
	if err := validate.CommitMessage(args.Message); err != nil {
		return nil, err
	}
	for _, f := range args.Files {
		if err := validate.RepoFile(f); err != nil {
			return nil, err
		}
	}
	explicit := git.Identity{Name: args.Name, Email: args.Email}
	if explicit.Valid() {
		if err := validate.Email(explicit.Email); err != nil {
			return nil, err
		}
	}

	var result *CommitResult
	err = s.run(ctx, VerbCommit, root, true, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}

		author := explicit
		if !author.Valid() {
			if author, err = h.Identity(ctx); err != nil {
				return err
			}
		}

		hash, err := h.Commit(ctx, git.CommitOptions{
			Message: args.Message,
			Files:   args.Files,
			Author:  author,
		})
		if err != nil {
			return err
		}

		result = &CommitResult{Hash: hash, ShortHash: git.ShortSHA(hash), Author: author}
		files := append([]string{}, args.Files...)
		s.emit(ctx, events.GitCommit, root, map[string]any{
			"message": args.Message,
			"name":    author.Name,
			"email":   author.Email,
			"files":   files,
		})
		return nil
	})
	return result, err
}

// Commits lists commits most recent first.
func (s *Service) Commits(ctx context.Context, ws Workspace, args CommitsArgs) ([]git.CommitSummary, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}
	if args.Ref != "" {
		if err := validate.Revision(args.Ref); err != nil {
			return nil, err
		}
	}
	if args.Limit < 0 || args.Skip < 0 {
		return nil, fmt.Errorf("%w: limit and skip must not be negative", errors.ErrInvalidArgument)
	}

	var commits []git.CommitSummary
	err = s.run(ctx, VerbCommits, root, false, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		commits, err = h.Commits(ctx, args.Ref, args.Limit, args.Skip)
		return err
	})
	return commits, err
}

// Branches lists local branches and marks the checked out one.
func (s *Service) Branches(ctx context.Context, ws Workspace) ([]BranchSummary, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}

	var branches []BranchSummary
	err = s.run(ctx, VerbBranches, root, false, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		current, err := h.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		names, err := h.Branches(ctx)
		if err != nil {
			return err
		}
		branches = make([]BranchSummary, 0, len(names))
		for _, name := range names {
			branches = append(branches, BranchSummary{Name: name, Active: name == current})
		}
		return nil
	})
	return branches, err
}

// CreateBranch creates a branch at HEAD.
func (s *Service) CreateBranch(ctx context.Context, ws Workspace, args BranchArgs) error {
	root, err := root(ws)
	if err != nil {
		return err
	}
	if err := validate.BranchName(args.Name); err != nil {
		return err
	}

	return s.run(ctx, VerbBranchCreate, root, true, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		if err := h.CreateBranch(ctx, args.Name); err != nil {
			return err
		}
		s.emit(ctx, events.GitBranchCreate, root, map[string]any{"branch": args.Name})
		return nil
	})
}

// DeleteBranch deletes a branch other than the checked out one.
func (s *Service) DeleteBranch(ctx context.Context, ws Workspace, args BranchArgs) error {
	root, err := root(ws)
	if err != nil {
		return err
	}
	if err := validate.BranchName(args.Name); err != nil {
		return err
	}

	return s.run(ctx, VerbBranchDelete, root, true, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		if err := h.DeleteBranch(ctx, args.Name); err != nil {
			return err
		}
		s.emit(ctx, events.GitBranchDelete, root, map[string]any{"branch": args.Name})
		return nil
	})
}

// Checkout switches the working tree to a branch, tag or commit.
func (s *Service) Checkout(ctx context.Context, ws Workspace, args CheckoutArgs) error {
	root, err := root(ws)
	if err != nil {
		return err
	}
	if err := validate.Revision(args.Ref); err != nil {
		return err
	}

	return s.run(ctx, VerbCheckout, root, true, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		if err := h.Checkout(ctx, args.Ref); err != nil {
			return err
		}
		s.emit(ctx, events.GitCheckout, root, map[string]any{"ref": args.Ref})
		return nil
	})
}

// PendingCommits lists commits on HEAD that the upstream does not have.
func (s *Service) PendingCommits(ctx context.Context, ws Workspace) (*PendingResult, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}

	var result *PendingResult
	err = s.run(ctx, VerbCommitsPending, root, false, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		commits, err := h.PendingCommits(ctx)
		if err != nil {
			return err
		}
		result = &PendingResult{Count: len(commits), Commits: commits}
		return nil
	})
	return result, err
}

// Diff compares two revisions, or a revision and the working tree.
func (s *Service) Diff(ctx context.Context, ws Workspace, args DiffArgs) ([]git.FileDiff, error) {
	root, err := root(ws)
	if err != nil {
		return nil, err
	}
	if args.Old == "" && args.New != "" {
		return nil, fmt.Errorf("%w: new revision given without old revision", errors.ErrInvalidArgument)
	}
	for _, rev := range []string{args.Old, args.New} {
		if rev == "" {
			continue
		}
		if err := validate.Revision(rev); err != nil {
			return nil, err
		}
	}

	var diffs []git.FileDiff
	err = s.run(ctx, VerbDiff, root, false, func(ctx context.Context) error {
		h, err := s.handles.Open(ctx, root)
		if err != nil {
			return err
		}
		diffs, err = h.Diff(ctx, args.Old, args.New)
		return err
	})
	return diffs, err
}
