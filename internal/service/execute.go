package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jayteealao/gitsvc/internal/errors"
)

// Command verbs.
const (
	VerbInit           = "init"
	VerbClone          = "clone"
	VerbStatus         = "status"
	VerbSync           = "sync"
	VerbPush           = "push"
	VerbPull           = "pull"
	VerbCommit         = "commit"
	VerbCommits        = "commits"
	VerbBranches       = "branches"
	VerbBranchCreate   = "branch_create"
	VerbBranchDelete   = "branch_delete"
	VerbCheckout       = "checkout"
	VerbCommitsPending = "commits_pending"
	VerbDiff           = "diff"
)

// Verbs lists every command in a stable order.
var Verbs = []string{
	VerbInit, VerbClone, VerbStatus, VerbSync, VerbPush, VerbPull,
	VerbCommit, VerbCommits, VerbBranches, VerbBranchCreate, VerbBranchDelete,
	VerbCheckout, VerbCommitsPending, VerbDiff,
}

// Ack is the result of commands that return no data.
type Ack struct {
	OK bool `json:"ok"`
}

// Execute decodes raw as the arguments of verb and runs it. Unknown fields
// in raw are ignored.
func (s *Service) Execute(ctx context.Context, verb string, ws Workspace, raw json.RawMessage) (any, error) {
	switch verb {
	case VerbInit:
		return s.Init(ctx, ws)
	case VerbClone:
		return call(raw, func(a CloneArgs) (any, error) { return s.Clone(ctx, ws, a) })
	case VerbStatus:
		return s.Status(ctx, ws)
	case VerbSync:
		return call(raw, func(a RemoteArgs) (any, error) { return s.Sync(ctx, ws, a) })
	case VerbPush:
		return call(raw, func(a RemoteArgs) (any, error) { return s.Push(ctx, ws, a) })
	case VerbPull:
		return call(raw, func(a RemoteArgs) (any, error) { return s.Pull(ctx, ws, a) })
	case VerbCommit:
		return call(raw, func(a CommitArgs) (any, error) { return s.Commit(ctx, ws, a) })
	case VerbCommits:
		return call(raw, func(a CommitsArgs) (any, error) { return s.Commits(ctx, ws, a) })
	case VerbBranches:
		return s.Branches(ctx, ws)
	case VerbBranchCreate:
		return call(raw, func(a BranchArgs) (any, error) { return ack(s.CreateBranch(ctx, ws, a)) })
	case VerbBranchDelete:
		return call(raw, func(a BranchArgs) (any, error) { return ack(s.DeleteBranch(ctx, ws, a)) })
	case VerbCheckout:
		return call(raw, func(a CheckoutArgs) (any, error) { return ack(s.Checkout(ctx, ws, a)) })
	case VerbCommitsPending:
		return s.PendingCommits(ctx, ws)
	case VerbDiff:
		return call(raw, func(a DiffArgs) (any, error) { return s.Diff(ctx, ws, a) })
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownCommand, verb)
	}
}

func call[A any](raw json.RawMessage, fn func(A) (any, error)) (any, error) {
	var args A
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: malformed arguments: %v", errors.ErrInvalidArgument, err)
		}
	}
	return fn(args)
}

func ack(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return Ack{OK: true}, nil
}
