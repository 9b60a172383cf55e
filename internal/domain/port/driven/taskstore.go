package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// TaskStore defines the driven port for ExecutionTask persistence.
//
// Every Transition is applied as a single conditional update keyed on the
// expected current status, so two concurrent transitions of the same task
// cannot both succeed. A failed precondition returns a *model.TransitionError
// and leaves the record untouched; an unknown id returns model.ErrNotFound.
type TaskStore interface {
	Create(ctx context.Context, task model.ExecutionTask) error

	// Get returns the task, or (nil, nil) if it does not exist.
	Get(ctx context.Context, id string) (*model.ExecutionTask, error)

	Transition(ctx context.Context, id string, t model.Transition) (*model.ExecutionTask, error)

	// ListDue returns PENDING tasks whose schedule has come due, ordered by
	// priority and then by age.
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.ExecutionTask, error)

	List(ctx context.Context, filter model.TaskFilter) ([]model.ExecutionTask, error)

	// Summarize counts tasks per status for the filter, ignoring its status,
	// sort and paging fields.
	Summarize(ctx context.Context, filter model.TaskFilter) (model.TaskSummary, error)
}
