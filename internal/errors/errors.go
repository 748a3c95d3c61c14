// Package errors provides sentinel errors and error kinds for gitsvc operations.
package errors

import (
	"context"
	"errors"
)

// Kind classifies an error for callers deciding how to react
// (prompt for credentials, show a conflict, report a hard failure).
type Kind string

const (
	KindValidation      Kind = "validation"
	KindRepositoryState Kind = "repository_state"
	KindAuthRequired    Kind = "auth_required"
	KindAuthCancelled   Kind = "auth_cancelled"
	KindAuthFailed      Kind = "auth_failed"
	KindRemoteTransport Kind = "remote_transport"
	KindRemoteTimeout   Kind = "remote_timeout"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

// Validation errors
var (
	// ErrInvalidArgument indicates a missing or malformed command argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownCommand indicates the requested verb is not part of the command surface.
	ErrUnknownCommand = errors.New("unknown command")
)

// Repository state errors
var (
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")

	// ErrRepoExists indicates repository metadata is already present at the path.
	ErrRepoExists = errors.New("repository already exists")

	// ErrDestinationNotEmpty indicates a clone target directory already has content.
	ErrDestinationNotEmpty = errors.New("destination path is not empty")

	// ErrIdentityUnavailable indicates no commit identity could be resolved.
	ErrIdentityUnavailable = errors.New("commit identity unavailable")

	// ErrNothingToCommit indicates the commit would be empty.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrUncommittedChanges indicates a checkout would overwrite local changes.
	ErrUncommittedChanges = errors.New("uncommitted changes would be overwritten")

	// ErrBranchExists indicates a branch with the given name already exists.
	ErrBranchExists = errors.New("branch already exists")

	// ErrDeleteActiveBranch indicates an attempt to delete the checked out branch.
	ErrDeleteActiveBranch = errors.New("cannot delete the active branch")

	// ErrNonFastForward indicates local and remote history diverged.
	ErrNonFastForward = errors.New("non-fast-forward update")

	// ErrNoUpstream indicates the current branch has no remote to talk to.
	ErrNoUpstream = errors.New("no upstream configured")

	// ErrRepoLocked indicates another process holds the repository lock.
	ErrRepoLocked = errors.New("repository is locked by another operation")
)

// Not found errors
var (
	// ErrRefNotFound indicates the specified git ref does not exist.
	ErrRefNotFound = errors.New("git ref not found")

	// ErrBranchNotFound indicates the specified branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrOperationNotFound indicates the requested journal entry does not exist.
	ErrOperationNotFound = errors.New("operation not found")
)

// Auth errors
var (
	// ErrAuthRequired indicates the remote rejected the request for lack of credentials.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthCancelled indicates the user dismissed the credential prompt.
	ErrAuthCancelled = errors.New("authentication cancelled")

	// ErrAuthFailed indicates the remote rejected the credentials collected after a challenge.
	ErrAuthFailed = errors.New("authentication failed")
)

// Remote errors
var (
	// ErrRemoteUnreachable indicates a transport-level failure talking to the remote.
	ErrRemoteUnreachable = errors.New("remote unreachable")

	// ErrRemoteTimeout indicates a remote operation exceeded its deadline.
	ErrRemoteTimeout = errors.New("remote operation timed out")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidArgument, KindValidation},
	{ErrUnknownCommand, KindValidation},
	{ErrNotGitRepo, KindRepositoryState},
	{ErrRepoExists, KindRepositoryState},
	{ErrDestinationNotEmpty, KindRepositoryState},
	{ErrIdentityUnavailable, KindRepositoryState},
	{ErrNothingToCommit, KindRepositoryState},
	{ErrUncommittedChanges, KindRepositoryState},
	{ErrBranchExists, KindRepositoryState},
	{ErrDeleteActiveBranch, KindRepositoryState},
	{ErrNonFastForward, KindRepositoryState},
	{ErrNoUpstream, KindRepositoryState},
	{ErrRepoLocked, KindRepositoryState},
	{ErrRefNotFound, KindNotFound},
	{ErrBranchNotFound, KindNotFound},
	{ErrOperationNotFound, KindNotFound},
	{ErrAuthFailed, KindAuthFailed},
	{ErrAuthCancelled, KindAuthCancelled},
	{ErrAuthRequired, KindAuthRequired},
	{ErrRemoteTimeout, KindRemoteTimeout},
	{ErrRemoteUnreachable, KindRemoteTransport},
}

// KindOf maps an error to its kind. Sentinels take precedence; otherwise an
// error with an ErrorKind method reports its own kind. Anything else is
// KindInternal, except a bare context deadline which is a timeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var k interface{ ErrorKind() Kind }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindRemoteTimeout
	}
	return KindInternal
}

// Sentinels returns every sentinel error of kind.
func Sentinels(kind Kind) []error {
	var out []error
	for _, k := range kinds {
		if k.kind == kind {
			out = append(out, k.err)
		}
	}
	return out
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
