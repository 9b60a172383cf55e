package driven

import (
	"context"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// Delivery is a fetched job. Ack must be called only after the job has been
// handled (or its retry scheduled); unacknowledged jobs are redelivered.
type Delivery struct {
	Job model.Job
	Ack func(ctx context.Context) error
}

// JobBroker defines the driven port for the durable at-least-once job queue.
type JobBroker interface {
	Publish(ctx context.Context, job model.Job) error
	// Fetch blocks until a job is available or ctx is done.
	Fetch(ctx context.Context) (Delivery, error)
	Close() error
}
