package store

import (
	"fmt"

	"mercator-hq/docguard/pkg/model"
)

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory" or "sqlite"
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func runNotFound(id string) error {
	return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
}

func batchNotFound(id string) error {
	return fmt.Errorf("hitl batch %s: %w", id, model.ErrNotFound)
}

func staleVersion(resource, id string, have, want int64) error {
	return model.NewConflictError(resource, id, fmt.Sprintf("stale version %d, stored version is %d", have, want))
}
