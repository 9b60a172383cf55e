package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// JobStore is the idempotency ledger of the worker queue.
type JobStore interface {
	// Begin records an attempt of the job as running. It returns false when the
	// job has already completed, in which case the caller must skip it.
	Begin(ctx context.Context, job model.Job) (bool, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, errMsg string, terminal bool) error
	Get(ctx context.Context, jobID string) (*model.JobRecord, error)
	// Prune deletes finished records outside the retention policy and returns
	// how many were removed.
	Prune(ctx context.Context, policy model.RetentionPolicy, now time.Time) (int, error)
}
