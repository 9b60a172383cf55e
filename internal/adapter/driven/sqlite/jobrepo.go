package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface. It is
// the worker queue's idempotency ledger.
type JobRepo struct {
	db  *DB
	now func() time.Time
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db, now: time.Now}
}

// Begin marks an attempt of job as running. It returns false without writing
// when the job already completed.
func (r *JobRepo) Begin(ctx context.Context, job model.Job) (bool, error) {
	const query = `INSERT INTO jobs (id, kind, task_id, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, 'running', ?, '', ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = 'running', attempts = excluded.attempts, updated_at = excluded.updated_at
		WHERE jobs.status != 'completed'`

	now := formatTime(r.now())
	res, err := r.db.Writer.ExecContext(ctx, query, job.ID, string(job.Kind), job.TaskID, job.Attempt, now, now)
	if err != nil {
		return false, fmt.Errorf("begin job %s: %w", job.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return rows > 0, nil
}

// Complete marks the job completed.
func (r *JobRepo) Complete(ctx context.Context, jobID string) error {
	const query = `UPDATE jobs SET status = 'completed', last_error = '', updated_at = ? WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(r.now()), jobID); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail records the error of an attempt. A terminal failure moves the job to
// failed; otherwise it stays running until its retry is delivered.
func (r *JobRepo) Fail(ctx context.Context, jobID, errMsg string, terminal bool) error {
	status := model.JobRunning
	if terminal {
		status = model.JobFailed
	}

	const query = `UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status != 'completed'`
	if _, err := r.db.Writer.ExecContext(ctx, query, string(status), errMsg, formatTime(r.now()), jobID); err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return nil
}

// Get returns the ledger entry for the job, or (nil, nil) if none exists.
func (r *JobRepo) Get(ctx context.Context, jobID string) (*model.JobRecord, error) {
	const query = `SELECT id, kind, task_id, status, attempts, last_error, created_at, updated_at FROM jobs WHERE id = ?`

	var rec model.JobRecord
	var kind, status, createdAt, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, jobID).Scan(
		&rec.ID, &kind, &rec.TaskID, &status, &rec.Attempts, &rec.LastError, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	rec.Kind = model.JobKind(kind)
	rec.Status = model.JobStatus(status)
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

// Prune removes completed jobs older than CompletedMaxAge or beyond the newest
// CompletedMaxCount, and failed jobs older than FailedMaxAge. Zero limits are
// not applied.
func (r *JobRepo) Prune(ctx context.Context, policy model.RetentionPolicy, now time.Time) (int, error) {
	var removed int64

	exec := func(query string, args ...any) error {
		res, err := r.db.Writer.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed += n
		return nil
	}

	if policy.CompletedMaxAge > 0 {
		cutoff := formatTime(now.Add(-policy.CompletedMaxAge))
		if err := exec(`DELETE FROM jobs WHERE status = 'completed' AND updated_at < ?`, cutoff); err != nil {
			return int(removed), fmt.Errorf("prune completed jobs by age: %w", err)
		}
	}

	if policy.CompletedMaxCount > 0 {
		const query = `DELETE FROM jobs WHERE status = 'completed' AND id NOT IN (
			SELECT id FROM jobs WHERE status = 'completed' ORDER BY updated_at DESC, id DESC LIMIT ?)`
		if err := exec(query, policy.CompletedMaxCount); err != nil {
			return int(removed), fmt.Errorf("prune completed jobs by count: %w", err)
		}
	}

	if policy.FailedMaxAge > 0 {
		cutoff := formatTime(now.Add(-policy.FailedMaxAge))
		if err := exec(`DELETE FROM jobs WHERE status = 'failed' AND updated_at < ?`, cutoff); err != nil {
			return int(removed), fmt.Errorf("prune failed jobs: %w", err)
		}
	}

	return int(removed), nil
}
