// Package platform implements the PlatformAdapter port for each supported
// creator platform.
package platform

import (
	"context"
	"sync"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

type sessionKey struct {
	platformID string
	clientID   string
}

// sessions holds one bound session per (platformID, clientID).
type sessions[T any] struct {
	mu sync.RWMutex
	m  map[sessionKey]T
}

func newSessions[T any]() *sessions[T] {
	return &sessions[T]{m: make(map[sessionKey]T)}
}

func (s *sessions[T]) get(platformID, clientID string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[sessionKey{platformID, clientID}]
	return v, ok
}

func (s *sessions[T]) put(platformID, clientID string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionKey{platformID, clientID}] = v
}

// drop removes every session of platformID.
func (s *sessions[T]) drop(platformID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.m {
		if k.platformID == platformID {
			delete(s.m, k)
		}
	}
}

// session returns the bound session of task, or ErrAdapterInit when the task's
// account has not been initialized.
func session[T any](s *sessions[T], task model.TaskPayload) (T, error) {
	v, ok := s.get(task.PlatformID, task.ClientID)
	if !ok {
		var zero T
		return zero, errNotInitialized(task.PlatformID)
	}
	return v, nil
}

// beforeMutation aborts with ErrTaskCancelled when the task was cancelled.
func beforeMutation(ctx context.Context) error {
	return model.CheckCancelled(ctx)
}

func supports(supported []model.TaskType, t model.TaskType) bool {
	for _, s := range supported {
		if s == t {
			return true
		}
	}
	return false
}
