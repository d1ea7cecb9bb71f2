package cli

import (
	"errors"
	"fmt"

	"mercator-hq/docguard/pkg/model"
)

// Exit codes of the docguard binary.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitConflict = 3
	ExitNotFound = 4
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cfgErr   *ConfigError
		valErr   *model.ValidationError
		inputErr *model.InputError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &inputErr):
		return ExitUsage
	case model.IsConflict(err):
		return ExitConflict
	case errors.Is(err, model.ErrNotFound):
		return ExitNotFound
	default:
		return ExitFailure
	}
}
