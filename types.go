package decor

import "reflect"

// Lifetime defines the reuse policy of a registered base implementation.
// Decorators inherit their behavior from the registry's wrapping mechanism
// and are not affected by this value.
type Lifetime string

// Available lifetimes
const (
	// LifetimeTransient creates a new instance for each resolution.
	LifetimeTransient Lifetime = "transient"
	// LifetimeScoped shares an instance within a single Scope.
	LifetimeScoped Lifetime = "scoped"
	// LifetimeSingleton shares a single instance across the application.
	LifetimeSingleton Lifetime = "singleton"
)

func (l Lifetime) valid() bool {
	switch l {
	case LifetimeTransient, LifetimeScoped, LifetimeSingleton:
		return true
	}
	return false
}

// Registrar is the narrow registry contract consumed by the ChainBuilder.
// Registry implements it; hosts with their own container can satisfy it to
// reuse the builder against a different backend.
type Registrar interface {
	// AddRecipe registers a construction recipe for the service type.
	// The constructor is a function whose parameters are themselves resolved
	// from the registry and whose first return value is the concrete
	// implementation (an optional trailing error return is allowed).
	AddRecipe(service reflect.Type, ctor any, lifetime Lifetime) error

	// Wrap decorates the current outermost registration of the service type.
	// The decorator constructor receives the wrapped instance as its first
	// parameter; at least one recipe must already exist for the service.
	Wrap(service reflect.Type, decorator any) error
}

// ServiceType returns the type token identifying the service T.
func ServiceType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
