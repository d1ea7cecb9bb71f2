package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run, batch, document or policy set does not
// exist.
var ErrNotFound = errors.New("not found")

// InputError reports a malformed or unreadable document.
type InputError struct {
	DocumentID string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	msg := fmt.Sprintf("input error [document=%s]: %s", e.DocumentID, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *InputError) Unwrap() error {
	return e.Cause
}

// NewInputError creates a new InputError.
func NewInputError(documentID, message string, cause error) *InputError {
	return &InputError{DocumentID: documentID, Message: message, Cause: cause}
}

// StageError reports an unrecoverable condition raised by one stage.
type StageError struct {
	Stage StageName
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage error [stage=%s]: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a new StageError.
func NewStageError(stage StageName, cause error) *StageError {
	return &StageError{Stage: stage, Cause: cause}
}

// ConflictError reports a rejected concurrent or repeated operation. The
// target is left unchanged.
type ConflictError struct {
	Resource string // "run" or "hitl_batch"
	ID       string
	Reason   string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict [%s=%s]: %s", e.Resource, e.ID, e.Reason)
}

// NewConflictError creates a new ConflictError.
func NewConflictError(resource, id, reason string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

// ValidationError reports a value rejected at the boundary.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
