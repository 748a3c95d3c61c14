// Package state provides the SQLite operation journal.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jayteealao/gitsvc/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// Operation statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store records repository operations in SQLite.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Operation is one journaled command.
type Operation struct {
	ID           string     `json:"id"`
	RepoPath     string     `json:"repo_path"`
	Verb         string     `json:"verb"`
	Status       string     `json:"status"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// New creates a new Store with the given data directory.
// The database file will be created at <dataDir>/gitsvc.db.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "gitsvc.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:      db,
		dataDir: dataDir,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the data directory path.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(initialMigration); err != nil {
			return fmt.Errorf("failed to run initial migration: %w", err)
		}
	}

	return nil
}

// StartOperation records a running operation and returns its id.
func (s *Store) StartOperation(ctx context.Context, repoPath, verb string) (string, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO operations (id, repo_path, verb, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, id, repoPath, verb, StatusRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record operation: %w", err)
	}
	return id, nil
}

// FinishOperation sets the final status of an operation.
func (s *Store) FinishOperation(ctx context.Context, id, status, errorKind, errorMessage string) error {
	query := `
		UPDATE operations
		SET status = ?, error_kind = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		status, nullString(errorKind), nullString(errorMessage), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", errors.ErrOperationNotFound, id)
	}
	return nil
}

const operationColumns = `id, repo_path, verb, status, error_kind, error_message, started_at, finished_at`

// GetOperation retrieves an operation by ID.
func (s *Store) GetOperation(ctx context.Context, id string) (*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = ?`

	op, err := scanOperation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", errors.ErrOperationNotFound, id)
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

// ListOperations returns operations most recent first. An empty repoPath
// lists every repository; limit <= 0 means no limit.
func (s *Store) ListOperations(ctx context.Context, repoPath string, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + operationColumns + ` FROM operations
		WHERE (? = '' OR repo_path = ?)
		ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, repoPath, repoPath, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return collectOperations(rows)
}

// GetInterruptedOperations returns operations that never finished, such as
// those running when the process died.
func (s *Store) GetInterruptedOperations(ctx context.Context) ([]*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations
		WHERE status = ?
		ORDER BY started_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list interrupted operations: %w", err)
	}
	return collectOperations(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (*Operation, error) {
	var op Operation
	var errorKind, errorMessage sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(
		&op.ID, &op.RepoPath, &op.Verb, &op.Status,
		&errorKind, &errorMessage, &op.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	op.ErrorKind = errorKind.String
	op.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		op.FinishedAt = &finishedAt.Time
	}
	return &op, nil
}

func collectOperations(rows *sql.Rows) ([]*Operation, error) {
	defer rows.Close()

	ops := []*Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
