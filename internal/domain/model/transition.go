package model

import "time"

// Transition describes one legal move of the task state machine:
//
//	PENDING     -> IN_PROGRESS           (Start)
//	IN_PROGRESS -> COMPLETED | FAILED    (Complete, Fail)
//	PENDING | IN_PROGRESS -> CANCELLED   (Cancel)
//	FAILED      -> PENDING               (Retry)
//
// Stores apply a Transition only while the task is in one of From.
type Transition struct {
	Action string
	From   []TaskStatus
	To     TaskStatus
	// Result replaces the stored result when non-nil.
	Result TaskResult
	// ClearResult removes the stored result.
	ClearResult bool
	// CountRetry increments RetryCount and stamps LastRetryAt with At.
	CountRetry bool
	At         time.Time
}

// Allows reports whether the transition may start from status.
func (t Transition) Allows(status TaskStatus) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// StartTransition claims a pending task for execution.
func StartTransition(at time.Time) Transition {
	return Transition{Action: "start", From: []TaskStatus{TaskPending}, To: TaskInProgress, At: at}
}

// CompleteTransition records a successful execution.
func CompleteTransition(metadata map[string]any, at time.Time) Transition {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Transition{
		Action: "complete",
		From:   []TaskStatus{TaskInProgress},
		To:     TaskCompleted,
		Result: Success{Metadata: metadata},
		At:     at,
	}
}

// FailTransition records a failed execution.
func FailTransition(errMsg string, at time.Time) Transition {
	return Transition{
		Action: "fail",
		From:   []TaskStatus{TaskInProgress},
		To:     TaskFailed,
		Result: Failure{Error: errMsg},
		At:     at,
	}
}

// CancelTransition cancels a task that has not finished.
func CancelTransition(reason string, at time.Time) Transition {
	return Transition{
		Action: "cancel",
		From:   []TaskStatus{TaskPending, TaskInProgress},
		To:     TaskCancelled,
		Result: Cancelled{Reason: reason, At: at},
		At:     at,
	}
}

// RetryTransition re-queues a failed task and clears its previous error.
func RetryTransition(at time.Time) Transition {
	return Transition{
		Action:      "retry",
		From:        []TaskStatus{TaskFailed},
		To:          TaskPending,
		ClearResult: true,
		CountRetry:  true,
		At:          at,
	}
}
