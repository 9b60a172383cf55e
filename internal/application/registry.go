package application

import (
	"log/slog"
	"sync"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Registry maps each platform type to its single adapter instance. It is built
// once at startup and injected into the services that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.PlatformType]driven.PlatformAdapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.PlatformType]driven.PlatformAdapter)}
}

// Register installs adapter for its platform type. A second registration for
// the same type is ignored and reported with false.
func (r *Registry) Register(adapter driven.PlatformAdapter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := adapter.Type()
	if _, exists := r.adapters[t]; exists {
		slog.Warn("adapter already registered, ignoring", "platform_type", t)
		return false
	}
	r.adapters[t] = adapter
	slog.Debug("adapter registered", "platform_type", t, "supported_tasks", adapter.SupportedTasks())
	return true
}

// Lookup returns the adapter for platform type t.
func (r *Registry) Lookup(t model.PlatformType) (driven.PlatformAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[t]
	return a, ok
}

// Missing lists every known platform type that has no registered adapter.
func (r *Registry) Missing() []model.PlatformType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []model.PlatformType
	for _, t := range model.PlatformTypes() {
		if _, ok := r.adapters[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
