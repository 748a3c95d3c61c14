// Package git provides git operations backed by go-git.
package git

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
)

// Options configures a Manager.
type Options struct {
	RemoteName string // remote used by push/pull/sync, default "origin"
	SSHUser    string // default "git"
	SSHKeyPath string // private key for ssh remotes; empty means ssh-agent
	Logger     *slog.Logger
}

// Manager opens, initializes and clones repositories.
type Manager struct {
	opts Options
}

// NewManager creates a new git manager.
func NewManager(opts Options) *Manager {
	if opts.RemoteName == "" {
		opts.RemoteName = "origin"
	}
	if opts.SSHUser == "" {
		opts.SSHUser = "git"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{opts: opts}
}

// Repo is an open repository bound to one working tree.
type Repo struct {
	mgr  *Manager
	root string
	repo *gogit.Repository

	closeOnce sync.Once
	closeErr  error
}

// IsGitRepo checks if the path holds repository metadata.
func IsGitRepo(root string) bool {
	_, err := os.Stat(filepath.Join(root, gogit.GitDirName))
	return err == nil
}

// Init creates a new repository at root. It fails with ErrRepoExists when
// metadata is already present.
func (m *Manager) Init(ctx context.Context, root string) (Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsGitRepo(root) {
		return nil, fmt.Errorf("%w: %s", errors.ErrRepoExists, root)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	r, err := gogit.PlainInit(root, false)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", errors.ErrRepoExists, root)
		}
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}

	m.opts.Logger.Debug("initialized repository", "root", root)
	return m.wrap(root, r), nil
}

// Open opens the existing repository at root.
func (m *Manager) Open(ctx context.Context, root string) (Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := gogit.PlainOpen(root)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", errors.ErrNotGitRepo, root)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return m.wrap(root, r), nil
}

// Clone clones url into root.
// Uses atomic clone with temp directory and rename to prevent partial clones.
func (m *Manager) Clone(ctx context.Context, url, root string, creds *auth.Credentials) (Repository, error) {
	existed, err := checkCloneDestination(root)
	if err != nil {
		return nil, err
	}

	method, err := m.authMethod(url, creds)
	if err != nil {
		return nil, err
	}

	// Create temp directory for atomic clone
	parentDir := filepath.Dir(root)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(parentDir, ".clone-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Clean up temp directory on failure
	success := false
	defer func() {
		if !success {
			os.RemoveAll(tempDir)
		}
	}()

	m.opts.Logger.Debug("cloning repository", "url", url, "root", root)
	_, err = gogit.PlainCloneContext(ctx, tempDir, false, &gogit.CloneOptions{
		URL:        url,
		Auth:       method,
		RemoteName: m.opts.RemoteName,
	})
	if err != nil {
		return nil, classifyRemoteError(ctx, url, err)
	}

	// An empty destination directory is replaced by the clone
	if existed {
		if err := os.Remove(root); err != nil {
			return nil, fmt.Errorf("failed to replace destination: %w", err)
		}
	}

	// Atomic rename to final path
	if err := os.Rename(tempDir, root); err != nil {
		if existed {
			os.Mkdir(root, 0755)
		}
		return nil, fmt.Errorf("failed to move cloned repo to final path: %w", err)
	}
	success = true

	r, err := gogit.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open cloned repository: %w", err)
	}
	return m.wrap(root, r), nil
}

// checkCloneDestination reports whether root exists. It fails when root
// exists and is not an empty directory.
func checkCloneDestination(root string) (bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat destination: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is a file", errors.ErrDestinationNotEmpty, root)
	}

	f, err := os.Open(root)
	if err != nil {
		return false, fmt.Errorf("failed to read destination: %w", err)
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err != io.EOF {
		if err != nil {
			return false, fmt.Errorf("failed to read destination: %w", err)
		}
		return false, fmt.Errorf("%w: %s", errors.ErrDestinationNotEmpty, root)
	}
	return true, nil
}

func (m *Manager) wrap(root string, r *gogit.Repository) *Repo {
	return &Repo{mgr: m, root: root, repo: r}
}

// Root returns the working tree path.
func (r *Repo) Root() string {
	return r.root
}

// Close releases storage resources. It is safe to call more than once.
func (r *Repo) Close() error {
	r.closeOnce.Do(func() {
		if c, ok := r.repo.Storer.(io.Closer); ok {
			r.closeErr = c.Close()
		}
	})
	return r.closeErr
}
