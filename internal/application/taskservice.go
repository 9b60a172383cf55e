package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

const (
	// outcomeWriteTimeout bounds recording a task outcome after its caller's
	// context is gone.
	outcomeWriteTimeout = 5 * time.Second
	outcomePollInterval = 100 * time.Millisecond

	interruptedError = "interrupted: the process stopped before the task finished"
)

// TaskExecutor runs a single task payload. ExecutionService implements it.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, task model.TaskPayload) model.ExecutionResult
}

// JobPublisher enqueues background jobs. driven.JobBroker implements it.
type JobPublisher interface {
	Publish(ctx context.Context, job model.Job) error
}

// TaskService owns the lifecycle of ExecutionTasks. Every state change goes
// through a conditional store transition, so concurrent callers cannot both
// move the same task.
type TaskService struct {
	tasks     driven.TaskStore
	platforms driven.PlatformStore
	executor  TaskExecutor

	jobs           JobPublisher
	jobMaxAttempts int

	now   func() time.Time
	newID func() string
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks driven.TaskStore, platforms driven.PlatformStore, executor TaskExecutor) *TaskService {
	return &TaskService{
		tasks:     tasks,
		platforms: platforms,
		executor:  executor,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// EnableMediaIngest makes Submit enqueue a media.ingest job for every task
// that carries media URLs.
func (s *TaskService) EnableMediaIngest(jobs JobPublisher, maxAttempts int) {
	s.jobs = jobs
	s.jobMaxAttempts = maxAttempts
}

// Submit validates payload and persists it as a PENDING task.
func (s *TaskService) Submit(ctx context.Context, payload model.TaskPayload) (*model.ExecutionTask, error) {
	return s.submit(ctx, payload, "")
}

// submit persists payload as a PENDING task, optionally linked to the
// automation that produced it.
func (s *TaskService) submit(ctx context.Context, payload model.TaskPayload, automationID string) (*model.ExecutionTask, error) {
	if strings.TrimSpace(payload.PlatformID) == "" {
		return nil, fmt.Errorf("platform_id is required: %w", model.ErrInvalidInput)
	}
	if !payload.TaskType.Valid() {
		return nil, fmt.Errorf("unknown task type %q: %w", payload.TaskType, model.ErrInvalidInput)
	}

	platform, err := s.platforms.Get(ctx, payload.PlatformID)
	if err != nil {
		return nil, fmt.Errorf("load platform %s: %w", payload.PlatformID, err)
	}
	if platform == nil {
		return nil, fmt.Errorf("platform %s: %w", payload.PlatformID, model.ErrNotFound)
	}
	if payload.ClientID == "" {
		payload.ClientID = platform.ClientID
	}

	now := s.now().UTC()
	payload.TaskID = s.newID()
	payload.Priority = payload.Priority.Normalize()

	task := model.ExecutionTask{
		ID:           payload.TaskID,
		PlatformID:   payload.PlatformID,
		ClientID:     payload.ClientID,
		TaskType:     payload.TaskType,
		Status:       model.TaskPending,
		Priority:     payload.Priority,
		Payload:      payload,
		AutomationID: automationID,
		ScheduledFor: payload.ScheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}

	slog.Info("task submitted",
		"task_id", task.ID,
		"platform_id", task.PlatformID,
		"task_type", task.TaskType,
		"priority", task.Priority,
	)

	s.enqueueMedia(ctx, task)
	return &task, nil
}

// enqueueMedia publishes the media.ingest job of task. The task is already
// persisted, so a publish failure is logged and not returned.
func (s *TaskService) enqueueMedia(ctx context.Context, task model.ExecutionTask) {
	if s.jobs == nil || len(task.Payload.MediaURLs) == 0 {
		return
	}

	body, err := json.Marshal(model.MediaIngestPayload{
		PlatformID: task.PlatformID,
		MediaURLs:  task.Payload.MediaURLs,
	})
	if err != nil {
		slog.Error("encode media ingest payload", "task_id", task.ID, "error", err)
		return
	}

	job := model.Job{
		ID:          s.newID(),
		Kind:        model.JobMediaIngest,
		TaskID:      task.ID,
		Payload:     body,
		Attempt:     1,
		MaxAttempts: s.jobMaxAttempts,
		EnqueuedAt:  s.now().UTC(),
	}
	if err := s.jobs.Publish(ctx, job); err != nil {
		slog.Error("enqueue media ingest job", "task_id", task.ID, "error", err)
		return
	}
	slog.Debug("media ingest job enqueued", "task_id", task.ID, "job_id", job.ID, "media", len(task.Payload.MediaURLs))
}

// Get returns the task with the given id.
func (s *TaskService) Get(ctx context.Context, id string) (*model.ExecutionTask, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	return task, nil
}

// Cancel moves a PENDING or IN_PROGRESS task to CANCELLED and records reason.
// An in-flight adapter call is not interrupted; it observes the cancellation
// through its cancel probe.
func (s *TaskService) Cancel(ctx context.Context, id, reason string) (*model.ExecutionTask, error) {
	task, err := s.tasks.Transition(ctx, id, model.CancelTransition(reason, s.now().UTC()))
	if err != nil {
		return nil, err
	}
	slog.Info("task cancelled", "task_id", id, "reason", reason)
	return task, nil
}

// Retry moves a FAILED task back to PENDING.
func (s *TaskService) Retry(ctx context.Context, id string) (*model.ExecutionTask, error) {
	task, err := s.tasks.Transition(ctx, id, model.RetryTransition(s.now().UTC()))
	if err != nil {
		return nil, err
	}
	slog.Info("task re-queued", "task_id", id, "retry_count", task.RetryCount)
	return task, nil
}

// List returns one page of tasks and per-status counts for filter.
func (s *TaskService) List(ctx context.Context, filter model.TaskFilter) (model.TaskPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return model.TaskPage{}, fmt.Errorf("unknown status %q: %w", filter.Status, model.ErrInvalidInput)
	}
	if filter.TaskType != "" && !filter.TaskType.Valid() {
		return model.TaskPage{}, fmt.Errorf("unknown task type %q: %w", filter.TaskType, model.ErrInvalidInput)
	}
	if !filter.Sort.Valid() {
		return model.TaskPage{}, fmt.Errorf("unsupported sort %q: %w", filter.Sort, model.ErrInvalidInput)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return model.TaskPage{}, fmt.Errorf("date range ends before it starts: %w", model.ErrInvalidInput)
	}
	filter = filter.Normalize()

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return model.TaskPage{}, fmt.Errorf("list tasks: %w", err)
	}
	summary, err := s.tasks.Summarize(ctx, filter)
	if err != nil {
		return model.TaskPage{}, fmt.Errorf("summarize tasks: %w", err)
	}

	return model.TaskPage{Tasks: tasks, Summary: summary, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// SubmitAndExecute submits payload and runs it immediately, returning the
// final task and the adapter result. If the dispatcher claims the task first,
// SubmitAndExecute waits for the dispatcher to record the outcome.
func (s *TaskService) SubmitAndExecute(ctx context.Context, payload model.TaskPayload) (*model.ExecutionTask, model.ExecutionResult, error) {
	task, err := s.submit(ctx, payload, "")
	if err != nil {
		return nil, model.ExecutionResult{}, err
	}

	claimed, err := s.Claim(ctx, task.ID)
	if errors.Is(err, model.ErrInvalidState) {
		slog.Debug("task claimed elsewhere, awaiting outcome", "task_id", task.ID)
		return s.awaitOutcome(ctx, task.ID)
	}
	if err != nil {
		return nil, model.ExecutionResult{}, err
	}
	return s.Run(ctx, claimed)
}

// awaitOutcome polls task id until it reaches a terminal status.
func (s *TaskService) awaitOutcome(ctx context.Context, id string) (*model.ExecutionTask, model.ExecutionResult, error) {
	ticker := time.NewTicker(outcomePollInterval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, model.ExecutionResult{}, err
		}
		if task.Status.Terminal() {
			return task, executionResultOf(task.Result), nil
		}

		select {
		case <-ctx.Done():
			return task, model.ExecutionResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// executionResultOf rebuilds the adapter result of a finished task.
func executionResultOf(r model.TaskResult) model.ExecutionResult {
	switch v := r.(type) {
	case model.Success:
		return model.Succeeded(v.Metadata)
	case model.Failure:
		return model.Failed(v.Error)
	case model.Cancelled:
		return model.Failed(model.ErrTaskCancelled.Error() + ": " + v.Reason)
	default:
		return model.ExecutionResult{}
	}
}

// Claim moves a PENDING task to IN_PROGRESS. Exactly one concurrent claimer
// succeeds; the others get a *model.TransitionError.
func (s *TaskService) Claim(ctx context.Context, id string) (*model.ExecutionTask, error) {
	return s.tasks.Transition(ctx, id, model.StartTransition(s.now().UTC()))
}

// Run executes a claimed task and records its outcome. If the task was
// cancelled while executing, it stays CANCELLED and the adapter result is
// still returned.
//
// The outcome is recorded even when ctx is already done, so a shutdown or a
// disconnected caller never strands the task IN_PROGRESS.
func (s *TaskService) Run(ctx context.Context, task *model.ExecutionTask) (*model.ExecutionTask, model.ExecutionResult, error) {
	execCtx := model.WithCancelCheck(ctx, s.cancelProbe(task.ID))
	result := s.executor.ExecuteTask(execCtx, task.Payload)

	var tr model.Transition
	if result.Success {
		tr = model.CompleteTransition(result.Metadata, s.now().UTC())
	} else {
		tr = model.FailTransition(result.Error, s.now().UTC())
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	final, err := s.tasks.Transition(recordCtx, task.ID, tr)
	var te *model.TransitionError
	if errors.As(err, &te) && te.Current == model.TaskCancelled {
		slog.Info("task cancelled during execution, outcome discarded", "task_id", task.ID, "success", result.Success)
		current, getErr := s.Get(recordCtx, task.ID)
		if getErr != nil {
			return nil, result, getErr
		}
		return current, result, nil
	}
	if err != nil {
		return nil, result, fmt.Errorf("record outcome of task %s: %w", task.ID, err)
	}

	if result.Success {
		slog.Info("task completed", "task_id", task.ID, "task_type", task.TaskType)
	} else {
		slog.Warn("task failed", "task_id", task.ID, "task_type", task.TaskType, "error", result.Error)
	}
	return final, result, nil
}

// RecoverInterrupted fails every task left IN_PROGRESS by a previous process,
// so it can be retried. It must run before the dispatcher starts.
func (s *TaskService) RecoverInterrupted(ctx context.Context) (int, error) {
	filter := model.TaskFilter{Status: model.TaskInProgress, Limit: model.MaxTaskPageSize}
	recovered := 0
	for {
		stale, err := s.tasks.List(ctx, filter)
		if err != nil {
			return recovered, fmt.Errorf("list interrupted tasks: %w", err)
		}
		if len(stale) == 0 {
			return recovered, nil
		}

		for _, task := range stale {
			_, err := s.tasks.Transition(ctx, task.ID, model.FailTransition(interruptedError, s.now().UTC()))
			if errors.Is(err, model.ErrInvalidState) {
				continue
			}
			if err != nil {
				return recovered, fmt.Errorf("recover task %s: %w", task.ID, err)
			}
			recovered++
			slog.Warn("interrupted task marked failed", "task_id", task.ID, "task_type", task.TaskType)
		}
	}
}

// cancelProbe reports whether the persisted task has been cancelled.
func (s *TaskService) cancelProbe(id string) model.CancelCheck {
	return func(ctx context.Context) bool {
		task, err := s.tasks.Get(ctx, id)
		if err != nil {
			slog.Warn("cancel probe failed", "task_id", id, "error", err)
			return false
		}
		return task != nil && task.Status == model.TaskCancelled
	}
}
