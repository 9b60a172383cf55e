package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// JobHandler processes one job kind. Delivery is at-least-once, so Handle must
// be idempotent. Returning an error wrapped with backoff.Permanent fails the
// job without further attempts.
type JobHandler interface {
	Handle(ctx context.Context, job model.Job) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, job model.Job) error

// Handle calls f.
func (f JobHandlerFunc) Handle(ctx context.Context, job model.Job) error { return f(ctx, job) }

// WorkerPoolConfig tunes a WorkerPool.
type WorkerPoolConfig struct {
	Concurrency     int
	MaxAttempts     int
	BaseDelay       time.Duration
	Retention       model.RetentionPolicy
	JanitorInterval time.Duration
}

const (
	defaultJanitorInterval = 10 * time.Minute
	fetchErrorPause        = time.Second
)

// WorkerPool consumes jobs from a JobBroker with a fixed number of workers.
// Failed attempts are retried by republishing the job with a NotBefore delay
// that doubles per attempt; the delivery is acknowledged only after the job
// completed, failed terminally or had its retry published.
type WorkerPool struct {
	broker   driven.JobBroker
	store    driven.JobStore
	handlers map[model.JobKind]JobHandler
	cfg      WorkerPoolConfig
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWorkerPool creates a WorkerPool with no handlers.
func NewWorkerPool(broker driven.JobBroker, store driven.JobStore, cfg WorkerPoolConfig) *WorkerPool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = defaultJanitorInterval
	}
	return &WorkerPool{
		broker:   broker,
		store:    store,
		handlers: make(map[model.JobKind]JobHandler),
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Handle registers h for jobs of kind. It must be called before Start.
func (p *WorkerPool) Handle(kind model.JobKind, h JobHandler) {
	p.handlers[kind] = h
}

// Start runs the workers and the retention janitor until ctx is canceled.
func (p *WorkerPool) Start(ctx context.Context) error {
	slog.Info("worker pool started", "concurrency", p.cfg.Concurrency, "max_attempts", p.cfg.MaxAttempts)

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Concurrency {
		g.Go(func() error {
			p.work(gctx, i)
			return nil
		})
	}
	g.Go(func() error {
		p.janitor(gctx)
		return nil
	})

	err := g.Wait()
	slog.Info("worker pool stopped")
	return err
}

func (p *WorkerPool) work(ctx context.Context, worker int) {
	for {
		d, err := p.broker.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("fetch job", "worker", worker, "error", err)
			if p.sleep(ctx, fetchErrorPause) != nil {
				return
			}
			continue
		}

		if err := p.Process(ctx, d); err != nil {
			slog.Error("process job", "worker", worker, "job_id", d.Job.ID, "error", err)
		}
	}
}

// Process handles a single delivery. It returns an error only when the
// delivery was left unacknowledged and will be redelivered.
func (p *WorkerPool) Process(ctx context.Context, d driven.Delivery) error {
	job := d.Job
	if job.Attempt < 1 {
		job.Attempt = 1
	}

	if wait := job.NotBefore.Sub(p.now()); wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}

	started, err := p.store.Begin(ctx, job)
	if err != nil {
		return fmt.Errorf("record job start: %w", err)
	}
	if !started {
		slog.Info("skipping completed job", "job_id", job.ID, "kind", job.Kind)
		return d.Ack(ctx)
	}

	handler, ok := p.handlers[job.Kind]
	if !ok {
		msg := fmt.Sprintf("no handler for job kind %q", job.Kind)
		if err := p.store.Fail(ctx, job.ID, msg, true); err != nil {
			return fmt.Errorf("record job failure: %w", err)
		}
		slog.Error("job dropped", "job_id", job.ID, "kind", job.Kind, "reason", msg)
		return d.Ack(ctx)
	}

	start := time.Now()
	herr := handler.Handle(ctx, job)
	if herr == nil {
		if err := p.store.Complete(ctx, job.ID); err != nil {
			return fmt.Errorf("record job completion: %w", err)
		}
		slog.Info("job completed", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "duration", time.Since(start))
		return d.Ack(ctx)
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = p.cfg.MaxAttempts
	}

	var permanent *backoff.PermanentError
	if errors.As(herr, &permanent) || job.Attempt >= maxAttempts {
		if err := p.store.Fail(ctx, job.ID, herr.Error(), true); err != nil {
			return fmt.Errorf("record job failure: %w", err)
		}
		slog.Error("job failed", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", herr)
		return d.Ack(ctx)
	}

	if err := p.store.Fail(ctx, job.ID, herr.Error(), false); err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}

	delay := p.RetryDelay(job.Attempt)
	retry := job
	retry.Attempt++
	retry.MaxAttempts = maxAttempts
	retry.NotBefore = p.now().Add(delay).UTC()
	if err := p.broker.Publish(ctx, retry); err != nil {
		return fmt.Errorf("publish retry of job %s: %w", job.ID, err)
	}

	slog.Warn("job attempt failed, retry scheduled",
		"job_id", job.ID,
		"kind", job.Kind,
		"attempt", job.Attempt,
		"delay", delay,
		"error", herr,
	)
	return d.Ack(ctx)
}

// RetryDelay returns the wait before the attempt following attempt: the base
// delay, doubled for every earlier attempt.
func (p *WorkerPool) RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.cfg.BaseDelay << 10
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (p *WorkerPool) janitor(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune applies the retention policy to the job ledger.
func (p *WorkerPool) Prune(ctx context.Context) {
	removed, err := p.store.Prune(ctx, p.cfg.Retention, p.now())
	if err != nil {
		slog.Error("prune job ledger", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("job ledger pruned", "removed", removed)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
