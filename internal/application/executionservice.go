package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// DefaultAdapterTimeout bounds a single adapter Initialize or Execute call when
// no explicit timeout is configured.
const DefaultAdapterTimeout = 30 * time.Second

// CredentialSource yields the decrypted credential map of a platform, or nil
// when none is usable.
type CredentialSource interface {
	Get(ctx context.Context, platformID string) (map[string]string, error)
}

// sessionInvalidator is implemented by adapters that can drop a bound session.
type sessionInvalidator interface {
	Invalidate(platformID string)
}

type sessionKey struct {
	platformID string
	clientID   string
}

// ExecutionService resolves the adapter for a task, binds credentials on first
// use and runs the task. It never returns an error or panics to its caller;
// every failure becomes an ExecutionResult with Success false.
type ExecutionService struct {
	platforms   driven.PlatformStore
	registry    *Registry
	credentials CredentialSource
	timeout     time.Duration

	mu    sync.Mutex
	locks map[sessionKey]*sync.Mutex
}

// NewExecutionService creates an ExecutionService. A non-positive timeout
// falls back to DefaultAdapterTimeout.
func NewExecutionService(
	platforms driven.PlatformStore,
	registry *Registry,
	credentials CredentialSource,
	timeout time.Duration,
) *ExecutionService {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	return &ExecutionService{
		platforms:   platforms,
		registry:    registry,
		credentials: credentials,
		timeout:     timeout,
		locks:       make(map[sessionKey]*sync.Mutex),
	}
}

// ExecuteTask runs task through the adapter of its platform.
func (s *ExecutionService) ExecuteTask(ctx context.Context, task model.TaskPayload) (result model.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked",
				"platform_id", task.PlatformID,
				"task_id", task.TaskID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = model.Failed(fmt.Sprintf("%v: adapter panicked: %v", model.ErrAdapterExecution, r))
		}
	}()

	adapter, err := s.resolve(ctx, task.PlatformID)
	if err != nil {
		slog.Warn("adapter resolution failed", "platform_id", task.PlatformID, "error", err)
		return model.Failed(err.Error())
	}

	if err := s.ensureInitialized(ctx, adapter, task); err != nil {
		var missing *model.MissingCredentialsError
		if errors.As(err, &missing) {
			return model.Failed(missing.Error())
		}
		slog.Warn("adapter initialization failed", "platform_id", task.PlatformID, "error", err)
		return model.Failed(err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := adapter.Execute(callCtx, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
		}
		slog.Warn("adapter execution failed",
			"platform_id", task.PlatformID,
			"task_type", task.TaskType,
			"duration", time.Since(start),
			"error", err,
		)
		return model.Failed(wrapExecution(err).Error())
	}

	if res.Success {
		return model.Succeeded(res.Metadata)
	}
	if res.Error == "" {
		res.Error = model.ErrAdapterExecution.Error()
	}
	return model.Failed(res.Error)
}

// resolve maps a platform id to the adapter registered for its type.
func (s *ExecutionService) resolve(ctx context.Context, platformID string) (driven.PlatformAdapter, error) {
	p, err := s.platforms.Get(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("load platform %s: %w", platformID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("platform %s: %w", platformID, model.ErrNotFound)
	}

	adapter, ok := s.registry.Lookup(p.Type)
	if !ok {
		return nil, fmt.Errorf("%w for platform type %s", model.ErrAdapterNotFound, p.Type)
	}
	return adapter, nil
}

// ensureInitialized binds credentials to the adapter session of the task's
// platform and client. Concurrent callers for one session are serialized so
// Initialize runs at most once per successful binding.
func (s *ExecutionService) ensureInitialized(ctx context.Context, adapter driven.PlatformAdapter, task model.TaskPayload) error {
	lock := s.sessionLock(task.PlatformID, task.ClientID)
	lock.Lock()
	defer lock.Unlock()

	if adapter.IsInitialized(task.PlatformID, task.ClientID) {
		return nil
	}

	creds, err := s.credentials.Get(ctx, task.PlatformID)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrAdapterInit, err)
	}

	if ok, missing := ValidateFields(adapter.Type(), creds); !ok {
		return &model.MissingCredentialsError{Fields: missing}
	}

	initCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := adapter.Initialize(initCtx, model.AdapterConfig{
		PlatformID:  task.PlatformID,
		ClientID:    task.ClientID,
		Credentials: creds,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrAdapterInit, err)
	}
	if !ok {
		return fmt.Errorf("%w: credentials rejected by %s", model.ErrAdapterInit, adapter.Type())
	}

	slog.Info("adapter session initialized", "platform_id", task.PlatformID, "platform_type", adapter.Type())
	return nil
}

// Invalidate drops every bound session of platformID so the next task
// re-reads its credentials. It holds the session locks of the platform, so an
// initialization that read the previous credentials finishes first and its
// session is dropped with the rest.
func (s *ExecutionService) Invalidate(ctx context.Context, platformID string) {
	p, err := s.platforms.Get(ctx, platformID)
	if err != nil || p == nil {
		return
	}
	adapter, ok := s.registry.Lookup(p.Type)
	if !ok {
		return
	}
	inv, ok := adapter.(sessionInvalidator)
	if !ok {
		return
	}

	locks := s.platformLocks(platformID)
	for _, l := range locks {
		l.Lock()
	}
	defer func() {
		for _, l := range locks {
			l.Unlock()
		}
	}()

	inv.Invalidate(platformID)
}

// platformLocks returns the session locks of every client of platformID.
// Callers of ensureInitialized hold at most one of them, so taking them all
// in turn cannot deadlock.
func (s *ExecutionService) platformLocks(platformID string) []*sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	var locks []*sync.Mutex
	for key, l := range s.locks {
		if key.platformID == platformID {
			locks = append(locks, l)
		}
	}
	return locks
}

func (s *ExecutionService) sessionLock(platformID, clientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{platformID: platformID, clientID: clientID}
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func wrapExecution(err error) error {
	if errors.Is(err, model.ErrAdapterExecution) || errors.Is(err, model.ErrUnsupportedTask) ||
		errors.Is(err, model.ErrTaskCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrAdapterExecution, err)
}
