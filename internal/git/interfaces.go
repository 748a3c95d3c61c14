package git

import (
	"context"

	"github.com/jayteealao/gitsvc/internal/auth"
)

// Engine binds working-tree paths to repositories.
type Engine interface {
	Init(ctx context.Context, root string) (Repository, error)
	Clone(ctx context.Context, url, root string, creds *auth.Credentials) (Repository, error)
	Open(ctx context.Context, root string) (Repository, error)
}

// Repository defines the git operations available on one working tree.
type Repository interface {
	Root() string
	Status(ctx context.Context) (*Status, error)
	Identity(ctx context.Context) (Identity, error)
	Commit(ctx context.Context, opts CommitOptions) (string, error)
	Commits(ctx context.Context, ref string, limit, skip int) ([]CommitSummary, error)
	CurrentBranch(ctx context.Context) (string, error)
	Branches(ctx context.Context) ([]string, error)
	CreateBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	Checkout(ctx context.Context, ref string) error
	PendingCommits(ctx context.Context) ([]CommitSummary, error)
	Diff(ctx context.Context, oldRef, newRef string) ([]FileDiff, error)
	Push(ctx context.Context, creds *auth.Credentials) error
	Pull(ctx context.Context, creds *auth.Credentials) error
	Sync(ctx context.Context, creds *auth.Credentials) error
	Close() error
}

// Ensure Manager implements Engine
var _ Engine = (*Manager)(nil)

// Ensure Repo implements Repository
var _ Repository = (*Repo)(nil)
