package model

import "time"

// ExecutionResult is the normalized outcome of running a task through its adapter.
type ExecutionResult struct {
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Succeeded builds a successful result. A nil metadata map is replaced with an
// empty one so callers never probe for nil.
func Succeeded(metadata map[string]any) ExecutionResult {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ExecutionResult{Success: true, Metadata: metadata}
}

// Failed builds a failed result carrying msg.
func Failed(msg string) ExecutionResult {
	return ExecutionResult{Success: false, Error: msg}
}

// ResultKind discriminates the variants of TaskResult.
type ResultKind string

const (
	ResultNone      ResultKind = ""
	ResultSuccess   ResultKind = "success"
	ResultFailure   ResultKind = "failure"
	ResultCancelled ResultKind = "cancelled"
)

// TaskResult is the stored outcome of an ExecutionTask. It is one of Success,
// Failure or Cancelled; a nil TaskResult means the task has no outcome yet.
type TaskResult interface {
	Kind() ResultKind
	isTaskResult()
}

// Success records the adapter metadata of a completed task.
type Success struct {
	Metadata map[string]any
}

// Failure records the error of a failed task.
type Failure struct {
	Error string
}

// Cancelled records why and when a task was cancelled.
type Cancelled struct {
	Reason string
	At     time.Time
}

func (Success) Kind() ResultKind   { return ResultSuccess }
func (Failure) Kind() ResultKind   { return ResultFailure }
func (Cancelled) Kind() ResultKind { return ResultCancelled }

func (Success) isTaskResult()   {}
func (Failure) isTaskResult()   {}
func (Cancelled) isTaskResult() {}
