package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

const dispatchBatchSize = 100

// Dispatcher periodically claims due PENDING tasks and runs them with bounded
// concurrency. Priority only orders the batch; a running task is never
// preempted.
type Dispatcher struct {
	tasks       driven.TaskStore
	service     *TaskService
	interval    time.Duration
	concurrency int
	now         func() time.Time
}

// NewDispatcher creates a Dispatcher polling every interval.
func NewDispatcher(tasks driven.TaskStore, service *TaskService, interval time.Duration, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		tasks:       tasks,
		service:     service,
		interval:    interval,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Start runs a dispatch cycle immediately and then on every tick. It blocks
// until ctx is canceled and waits for in-flight tasks before returning.
// Tasks still running at cancellation record their outcome before Start
// returns.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("dispatcher started", "interval", d.interval, "concurrency", d.concurrency)

	if _, err := d.RunOnce(ctx); err != nil {
		slog.Error("initial dispatch failed", "error", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				slog.Error("dispatch cycle failed", "error", err)
			}
		}
	}
}

// RunOnce claims and runs every task that is due now. It returns how many
// tasks it ran.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := d.tasks.ListDue(ctx, d.now().UTC(), dispatchBatchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	var ran atomic.Int32
	for _, task := range due {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			claimed, err := d.service.Claim(gctx, task.ID)
			if errors.Is(err, model.ErrInvalidState) {
				slog.Debug("task no longer pending", "task_id", task.ID)
				return nil
			}
			if err != nil {
				slog.Error("claim task", "task_id", task.ID, "error", err)
				return nil
			}

			ran.Add(1)
			if _, _, err := d.service.Run(gctx, claimed); err != nil {
				slog.Error("run task", "task_id", claimed.ID, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()
	slog.Debug("dispatch cycle complete", "ran", ran.Load(), "due", len(due))
	return int(ran.Load()), nil
}
