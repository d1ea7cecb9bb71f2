package policy

import (
	"fmt"
	"strings"

	"mercator-hq/docguard/pkg/model"
)

// LoadError reports a policy file that could not be read or parsed.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy load error [file=%s]: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("policy load error [file=%s]: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ValidationError collects every field problem found in a policy set.
type ValidationError struct {
	SetID  string
	Errors []*model.ValidationError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("policy set %q is invalid: %s", e.SetID, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual field errors to errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe
	}
	return out
}
