package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the core. Callers match them with errors.Is.
var (
	ErrConfig             = errors.New("configuration error")
	ErrIntegrity          = errors.New("integrity check failed")
	ErrAdapterInit        = errors.New("adapter initialization failed")
	ErrAdapterExecution   = errors.New("adapter execution failed")
	ErrInvalidState       = errors.New("invalid state")
	ErrNotFound           = errors.New("not found")
	ErrAdapterNotFound    = fmt.Errorf("adapter %w", ErrNotFound)
	ErrUnsupportedTask    = errors.New("unsupported task type")
	ErrTaskCancelled      = errors.New("task cancelled")
	ErrAutomationInactive = fmt.Errorf("automation is inactive: %w", ErrInvalidState)
	ErrInvalidInput       = errors.New("invalid input")
)

// MissingCredentialsError lists every required credential field that was
// absent or empty.
type MissingCredentialsError struct {
	Fields []string
}

func (e *MissingCredentialsError) Error() string {
	return "Missing required credentials: " + strings.Join(e.Fields, ", ")
}

// TransitionError reports an illegal task transition. It wraps ErrInvalidState.
type TransitionError struct {
	TaskID   string
	Action   string
	Current  TaskStatus
	Expected []TaskStatus
}

func (e *TransitionError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("cannot %s task %s: status is %s, must be %s",
		e.Action, e.TaskID, e.Current, strings.Join(expected, " or "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidState }
