package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/jayteealao/gitsvc/internal/errors"
)

// State is a step of one remote operation attempt.
type State int

const (
	StateAttempting State = iota
	StateChallengeIssued
	StateRetrying
	StateSucceeded
	StateFailed
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateChallengeIssued:
		return "challenge_issued"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Operation is a remote call that may be retried with fresh credentials.
type Operation func(ctx context.Context, creds *Credentials) error

// Broker runs remote operations and answers an authentication challenge
// with at most one prompt and at most one retry.
type Broker struct {
	prompter Prompter
	logger   *slog.Logger
	observe  func(State)
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger used for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State)) Option {
	return func(b *Broker) { b.observe = fn }
}

// NewBroker creates a broker. A nil prompter means challenges are returned
// to the caller as ErrAuthRequired instead of being answered in-process.
func NewBroker(prompter Prompter, opts ...Option) *Broker {
	b := &Broker{
		prompter: prompter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes op with the initial credentials (possibly nil). On an
// authentication error it prompts once and retries once.
func (b *Broker) Run(ctx context.Context, initial *Credentials, op Operation) error {
	b.transition(StateAttempting)
	err := op(ctx, initial)
	if err == nil {
		b.transition(StateSucceeded)
		return nil
	}
	if !IsAuthError(err) {
		b.transition(StateFailed)
		return err
	}

	challenge := challengeFor(err)
	b.transition(StateChallengeIssued)
	b.logger.Debug("authentication challenge issued", "kind", challenge.Kind, "remote", challenge.Remote)

	if b.prompter == nil {
		b.transition(StateFailed)
		if !initial.IsZero() {
			return fmt.Errorf("%w: %w", apperrors.ErrAuthFailed, err)
		}
		return err
	}

	creds, perr := b.prompter.Prompt(ctx, challenge)
	if perr != nil {
		if errors.Is(perr, ErrPromptCancelled) || errors.Is(perr, context.Canceled) {
			b.transition(StateCancelled)
			return fmt.Errorf("%w: %w", apperrors.ErrAuthCancelled, perr)
		}
		b.transition(StateFailed)
		return fmt.Errorf("credential prompt failed: %w", perr)
	}
	if creds == nil {
		b.transition(StateCancelled)
		return apperrors.ErrAuthCancelled
	}
	if creds.Kind == "" {
		creds.Kind = challenge.Kind
	}

	b.transition(StateRetrying)
	err = op(ctx, creds)
	if err == nil {
		b.transition(StateSucceeded)
		return nil
	}
	b.transition(StateFailed)
	if IsAuthError(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrAuthFailed, err)
	}
	return err
}

func (b *Broker) transition(s State) {
	if b.observe != nil {
		b.observe(s)
	}
}

// IsAuthError reports whether err is an authentication rejection that a
// prompt could resolve.
func IsAuthError(err error) bool {
	return errors.Is(err, apperrors.ErrAuthRequired) &&
		!errors.Is(err, apperrors.ErrAuthFailed) &&
		!errors.Is(err, apperrors.ErrAuthCancelled)
}

func challengeFor(err error) Challenge {
	if c, ok := AsChallenge(err); ok {
		return c
	}
	return NewChallenge(KindPassword, "")
}
