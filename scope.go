package decor

import (
	"reflect"
	"sync"
)

// Scope caches scoped instances for one logical unit of work, typically an
// HTTP request. Scoped services resolved through the same Scope share one
// instance; different Scopes are isolated from each other.
type Scope struct {
	registry  *Registry
	mu        sync.RWMutex
	instances map[reflect.Type]any
}

// NewScope creates a new resolution scope backed by the registry.
func (r *Registry) NewScope() *Scope {
	return &Scope{
		registry:  r,
		instances: make(map[reflect.Type]any),
	}
}

func (s *Scope) get(service reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[service]
	return instance, ok
}

// put stores the instance unless another goroutine stored one first, and
// returns the instance the scope settled on.
func (s *Scope) put(service reflect.Type, instance any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[service]; ok {
		return existing
	}
	s.instances[service] = instance
	return instance
}

// Reset clears all cached instances in the scope.
func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = make(map[reflect.Type]any)
}

// ResolveScoped returns the instance registered for T, caching scoped
// services in the given scope. Transient and singleton services behave as
// they do with Resolve.
func ResolveScoped[T any](s *Scope) (T, error) {
	return resolveAs[T](s.registry, s)
}

// MustResolveScoped is like ResolveScoped but panics on error.
func MustResolveScoped[T any](s *Scope) T {
	instance, err := ResolveScoped[T](s)
	if err != nil {
		panic(err)
	}
	return instance
}
