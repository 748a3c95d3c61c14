package state

import "context"

// Journal defines the operation journal used by the command service.
type Journal interface {
	StartOperation(ctx context.Context, repoPath, verb string) (string, error)
	FinishOperation(ctx context.Context, id, status, errorKind, errorMessage string) error
}

// StateStore defines the full set of journal storage operations.
type StateStore interface {
	Journal
	Close() error
	DataDir() string
	GetOperation(ctx context.Context, id string) (*Operation, error)
	ListOperations(ctx context.Context, repoPath string, limit int) ([]*Operation, error)
	GetInterruptedOperations(ctx context.Context) ([]*Operation, error)
}

// Ensure Store implements StateStore
var _ StateStore = (*Store)(nil)
