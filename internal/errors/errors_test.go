package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("%w: message is required", ErrInvalidArgument), KindValidation},
		{"not a repo", ErrNotGitRepo, KindRepositoryState},
		{"branch missing", fmt.Errorf("delete: %w", ErrBranchNotFound), KindNotFound},
		{"auth required", ErrAuthRequired, KindAuthRequired},
		{"auth failed wraps required", fmt.Errorf("%w: %w", ErrAuthFailed, ErrAuthRequired), KindAuthFailed},
		{"cancelled wraps required", fmt.Errorf("%w: %w", ErrAuthCancelled, ErrAuthRequired), KindAuthCancelled},
		{"timeout", fmt.Errorf("%w: %w", ErrRemoteTimeout, context.DeadlineExceeded), KindRemoteTimeout},
		{"bare deadline", context.DeadlineExceeded, KindRemoteTimeout},
		{"transport", ErrRemoteUnreachable, KindRemoteTransport},
		{"unknown", errors.New("disk on fire"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

type kindedError struct{ kind Kind }

func (e kindedError) Error() string    { return "remote failure" }
func (e kindedError) ErrorKind() Kind { return e.kind }

func TestKindOf_ErrorKindMethod(t *testing.T) {
	assert.Equal(t, KindRepositoryState, KindOf(fmt.Errorf("wrapped: %w", kindedError{KindRepositoryState})))
	assert.Equal(t, KindAuthFailed, KindOf(fmt.Errorf("%w: %w", ErrAuthFailed, kindedError{KindAuthRequired})),
		"sentinels take precedence")
}

func TestSentinels(t *testing.T) {
	assert.Equal(t, []error{ErrAuthRequired}, Sentinels(KindAuthRequired))
	assert.Contains(t, Sentinels(KindNotFound), ErrBranchNotFound)
	assert.Empty(t, Sentinels(KindInternal))
}
