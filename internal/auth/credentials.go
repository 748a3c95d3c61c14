// Package auth drives the credential challenge/response round-trip for
// remote git operations.
package auth

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the style of credential a remote asks for.
type Kind string

const (
	// KindPassword is username/password (HTTP basic) authentication.
	KindPassword Kind = "password"
	// KindPassphrase unlocks an SSH private key.
	KindPassphrase Kind = "passphrase"
)

// Credentials are collected for a single retry and then discarded.
type Credentials struct {
	Kind       Kind   `json:"kind"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// IsZero reports whether no credential value is set.
func (c *Credentials) IsZero() bool {
	return c == nil || (c.Username == "" && c.Password == "" && c.Passphrase == "")
}

// String never prints secrets.
func (c *Credentials) String() string {
	if c == nil {
		return "<none>"
	}
	if c.Kind == KindPassphrase {
		return "passphrase(***)"
	}
	return fmt.Sprintf("password(%s:***)", c.Username)
}

// Field describes one value the prompt must collect.
type Field struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Secret bool   `json:"secret"`
}

// Challenge is issued when a remote rejects a request for lack of credentials.
type Challenge struct {
	Kind   Kind    `json:"kind"`
	Remote string  `json:"remote,omitempty"`
	Fields []Field `json:"fields"`
}

// NewChallenge builds the field schema for the given kind.
func NewChallenge(kind Kind, remote string) Challenge {
	c := Challenge{Kind: kind, Remote: remote}
	switch kind {
	case KindPassphrase:
		c.Fields = []Field{{Name: "passphrase", Label: "Passphrase", Secret: true}}
	default:
		c.Kind = KindPassword
		c.Fields = []Field{
			{Name: "username", Label: "Username"},
			{Name: "password", Label: "Password", Secret: true},
		}
	}
	return c
}

// ChallengeError is returned by a remote operation that needs credentials.
// It wraps the underlying transport error and unwraps to it.
type ChallengeError struct {
	Challenge Challenge
	Err       error
}

func (e *ChallengeError) Error() string {
	return e.Err.Error()
}

func (e *ChallengeError) Unwrap() error {
	return e.Err
}

// AsChallenge extracts the challenge carried by err, if any.
func AsChallenge(err error) (Challenge, bool) {
	var ce *ChallengeError
	if errors.As(err, &ce) {
		return ce.Challenge, true
	}
	return Challenge{}, false
}

// ErrPromptCancelled is returned by a Prompter when the user dismisses the prompt.
var ErrPromptCancelled = errors.New("credential prompt cancelled")

// Prompter collects credentials from a user. It blocks until the user
// answers or cancels; cancellation is reported as ErrPromptCancelled.
type Prompter interface {
	Prompt(ctx context.Context, challenge Challenge) (*Credentials, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, challenge Challenge) (*Credentials, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, challenge Challenge) (*Credentials, error) {
	return f(ctx, challenge)
}
