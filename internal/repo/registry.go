// Package repo binds repository paths to open engine handles.
package repo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/git"
)

// Registry keeps at most one open handle per repository path. It performs no
// locking of repository operations; callers sequence them.
type Registry struct {
	engine git.Engine
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]git.Repository
}

// NewRegistry creates a registry backed by engine.
func NewRegistry(engine git.Engine, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		engine:  engine,
		logger:  logger,
		handles: make(map[string]git.Repository),
	}
}

// Open returns the cached handle for root, opening it on first use.
func (r *Registry) Open(ctx context.Context, root string) (git.Repository, error) {
	key, err := normalize(root)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[key]; ok {
		return h, nil
	}
	h, err := r.engine.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	r.handles[key] = h
	return h, nil
}

// Init creates a repository at root and caches its handle.
func (r *Registry) Init(ctx context.Context, root string) (git.Repository, error) {
	key, err := normalize(root)
	if err != nil {
		return nil, err
	}
	h, err := r.engine.Init(ctx, key)
	if err != nil {
		return nil, err
	}
	r.replace(key, h)
	return h, nil
}

// Clone clones url into root and caches the new handle.
func (r *Registry) Clone(ctx context.Context, url, root string, creds *auth.Credentials) (git.Repository, error) {
	key, err := normalize(root)
	if err != nil {
		return nil, err
	}
	h, err := r.engine.Clone(ctx, url, key, creds)
	if err != nil {
		return nil, err
	}
	r.replace(key, h)
	return h, nil
}

func (r *Registry) replace(key string, h git.Repository) {
	r.mu.Lock()
	old, ok := r.handles[key]
	r.handles[key] = h
	r.mu.Unlock()

	if ok {
		r.closeHandle(key, old)
	}
}

// Close releases the handle for root. Closing an unknown path is a no-op.
func (r *Registry) Close(root string) error {
	key, err := normalize(root)
	if err != nil {
		return err
	}

	r.mu.Lock()
	h, ok := r.handles[key]
	delete(r.handles, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return h.Close()
}

// CloseAll releases every handle.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]git.Repository)
	r.mu.Unlock()

	for key, h := range handles {
		r.closeHandle(key, h)
	}
}

// Len returns the number of open handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Registry) closeHandle(key string, h git.Repository) {
	if err := h.Close(); err != nil {
		r.logger.Warn("failed to close repository", "root", key, "error", err)
	}
}

func normalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", root, err)
	}
	return filepath.Clean(abs), nil
}
