// Package service exposes the git command surface. Every command validates
// its arguments, takes the per-repository lock and then calls into the
// repository handle.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/events"
	"github.com/jayteealao/gitsvc/internal/git"
	"github.com/jayteealao/gitsvc/internal/lock"
	"github.com/jayteealao/gitsvc/internal/state"
	"github.com/jayteealao/gitsvc/internal/validate"
)

// DefaultRemoteTimeout bounds a single clone, push, pull or sync attempt.
const DefaultRemoteTimeout = 2 * time.Minute

// Workspace supplies the repository root a command runs against.
type Workspace interface {
	Root() string
}

// Dir is a Workspace rooted at a fixed path.
type Dir string

// Root returns the directory.
func (d Dir) Root() string { return string(d) }

// Handles binds repository roots to engine handles.
type Handles interface {
	Open(ctx context.Context, root string) (git.Repository, error)
	Init(ctx context.Context, root string) (git.Repository, error)
	Clone(ctx context.Context, url, root string, creds *auth.Credentials) (git.Repository, error)
	CloseAll()
}

// Service runs git commands against repositories.
type Service struct {
	handles       Handles
	seq           lock.Sequencing
	broker        *auth.Broker
	bus           *events.Bus
	journal       state.Journal
	remoteTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBroker sets the broker that answers authentication challenges.
func WithBroker(b *auth.Broker) Option {
	return func(s *Service) { s.broker = b }
}

// WithBus sets the bus notified after successful mutations.
func WithBus(b *events.Bus) Option {
	return func(s *Service) { s.bus = b }
}

// WithJournal records the start and outcome of every command.
func WithJournal(j state.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithRemoteTimeout sets the per-attempt deadline for remote commands.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.remoteTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. Without WithBroker, authentication challenges are
// returned to the caller.
func New(handles Handles, seq lock.Sequencing, opts ...Option) *Service {
	s := &Service{
		handles:       handles,
		seq:           seq,
		remoteTimeout: DefaultRemoteTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = auth.NewBroker(nil, auth.WithLogger(s.logger))
	}
	return s
}

// Close releases every open repository handle.
func (s *Service) Close() {
	s.handles.CloseAll()
}

// root validates the workspace and returns its absolute root.
func root(ws Workspace) (string, error) {
	if ws == nil {
		return validate.WorkspacePath("")
	}
	return validate.WorkspacePath(ws.Root())
}

// run journals verb and executes fn under the read or write lock for root.
func (s *Service) run(ctx context.Context, verb, root string, write bool, fn func(ctx context.Context) error) error {
	s.logger.Debug("running command", "verb", verb, "root", root)
	id := s.startJournal(ctx, verb, root)

	var err error
	if write {
		err = s.seq.Write(ctx, root, fn)
	} else {
		err = s.seq.Read(ctx, root, fn)
	}

	s.finishJournal(ctx, id, err)
	if err != nil {
		s.logger.Debug("command failed", "verb", verb, "root", root, "kind", errors.KindOf(err), "error", err)
	}
	return err
}

func (s *Service) startJournal(ctx context.Context, verb, root string) string {
	if s.journal == nil {
		return ""
	}
	id, err := s.journal.StartOperation(context.WithoutCancel(ctx), root, verb)
	if err != nil {
		s.logger.Warn("failed to journal operation", "verb", verb, "error", err)
		return ""
	}
	return id
}

func (s *Service) finishJournal(ctx context.Context, id string, opErr error) {
	if s.journal == nil || id == "" {
		return
	}
	status, kind, msg := state.StatusSucceeded, "", ""
	if opErr != nil {
		status, kind, msg = state.StatusFailed, string(errors.KindOf(opErr)), opErr.Error()
	}
	if err := s.journal.FinishOperation(context.WithoutCancel(ctx), id, status, kind, msg); err != nil {
		s.logger.Warn("failed to journal operation result", "id", id, "error", err)
	}
}

// remote runs op through the broker, bounding each attempt by the remote
// timeout. Time spent in a credential prompt is not counted.
func (s *Service) remote(ctx context.Context, creds *auth.Credentials, op auth.Operation) error {
	return s.broker.Run(ctx, creds, func(ctx context.Context, c *auth.Credentials) error {
		rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		defer cancel()
		return op(rctx, c)
	})
}

func (s *Service) emit(ctx context.Context, name, root string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["path"] = root
	s.bus.Emit(ctx, name, payload)
}
