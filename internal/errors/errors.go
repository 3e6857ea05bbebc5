// Package errors provides structured error types for framepress operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindCommand represents external command execution errors.
	KindCommand
	// KindValidation represents invalid requests (no input, non-positive duration).
	KindValidation
	// KindProbe represents media information extraction failures.
	KindProbe
	// KindMaterialization represents frame serialization or intermediate mux failures.
	KindMaterialization
	// KindEncode represents pass 1, pass 2 or single-pass encode failures.
	KindEncode
	// KindAudioNormalization represents recoverable audio problems.
	KindAudioNormalization
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindWorkspace represents workspace acquisition or release failures.
	KindWorkspace
	// KindCancelled represents user-cancelled operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindCommand:
		return "Command error"
	case KindValidation:
		return "Validation error"
	case KindProbe:
		return "Probe error"
	case KindMaterialization:
		return "Materialization error"
	case KindEncode:
		return "Encode error"
	case KindAudioNormalization:
		return "Audio normalization warning"
	case KindConfig:
		return "Configuration error"
	case KindWorkspace:
		return "Workspace error"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command returned non-zero exit status.
	CommandFailed
)

// CommandError represents an error from executing an external command.
// Args holds the exact argument vector so a failure can be reproduced by hand.
type CommandError struct {
	Command    string
	Args       []string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("command %s failed with exit code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
		}
		return fmt.Sprintf("command %s failed with exit code %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CommandLine renders the command and its arguments as a single line.
func (e *CommandError) CommandLine() string {
	if len(e.Args) == 0 {
		return e.Command
	}
	return e.Command + " " + strings.Join(e.Args, " ")
}

// CoreError is the main error type for framepress operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewValidationError creates an error for a request that cannot be processed.
func NewValidationError(message string) *CoreError {
	return &CoreError{Kind: KindValidation, Message: message}
}

// NewProbeError creates an error for failed media information extraction.
func NewProbeError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindProbe, Message: message, Underlying: underlying}
}

// NewMaterializationError creates an error for failed frame serialization or muxing.
func NewMaterializationError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindMaterialization, Message: message, Underlying: underlying}
}

// NewEncodeError creates an error for a failed encode pass.
func NewEncodeError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindEncode, Message: message, Underlying: underlying}
}

// NewAudioWarning creates a non-fatal audio normalization error.
func NewAudioWarning(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindAudioNormalization, Message: message, Underlying: underlying}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message, Underlying: underlying}
}

// NewWorkspaceError creates a new workspace error.
func NewWorkspaceError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindWorkspace, Message: message, Underlying: underlying}
}

// NewCommandStartError creates an error for when a command fails to start.
func NewCommandStartError(cmd string, args []string, err error) *CoreError {
	cmdErr := &CommandError{Command: cmd, Args: args, Kind: CommandStart, Underlying: err}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewCommandFailedError creates an error for when a command returns non-zero exit status.
func NewCommandFailedError(cmd string, args []string, exitCode int, stderr string) *CoreError {
	cmdErr := &CommandError{
		Command:  cmd,
		Args:     args,
		Kind:     CommandFailed,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewCancelledError creates an error for user-cancelled operations.
func NewCancelledError(underlying error) *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled", Underlying: underlying}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	for errors.As(err, &coreErr) {
		if coreErr.Kind == kind {
			return true
		}
		err = coreErr.Underlying
	}
	return false
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// AsCommandError returns the CommandError wrapped somewhere in err, if any.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, args []string, err error, stderr string) *CoreError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewCommandFailedError(cmd, args, exitErr.ExitCode(), stderr)
	}
	return NewCommandStartError(cmd, args, err)
}
