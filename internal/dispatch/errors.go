package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDispatcherRunning    = errors.New("dispatcher is already running")
	ErrDispatcherNotRunning = errors.New("dispatcher is not running")
	ErrSubmitInterrupted    = errors.New("command submission interrupted")
)

// PermissionError is the structured admission denial. It names the
// missing permissions so the rendering layer can show them.
type PermissionError struct {
	Command      string
	MissingActor []string
	MissingBot   []string
}

func (e *PermissionError) Error() string {
	if len(e.MissingActor) > 0 {
		return fmt.Sprintf("command %s denied: you lack %s",
			e.Command, strings.Join(e.MissingActor, ", "))
	}
	return fmt.Sprintf("command %s denied: bot lacks %s",
		e.Command, strings.Join(e.MissingBot, ", "))
}

// ExecutionError wraps a command failure with a correlation id for the
// user-visible generic failure message.
type ExecutionError struct {
	CorrelationID string
	Err           error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command failed [%s]: %v", e.CorrelationID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FatalError marks an unrecoverable failure class, for example the
// persistence layer going away entirely. It triggers orderly shutdown.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as unrecoverable.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries the unrecoverable marker.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
