package decor

import "fmt"

// InvalidArgumentError represents malformed input to the builder.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// DuplicateDecoratorError represents an attempt to add a decorator
// implementation that is already part of the chain.
type DuplicateDecoratorError struct {
	Service   string
	Decorator string
}

func (e *DuplicateDecoratorError) Error() string {
	return fmt.Sprintf("duplicate decorator %s for service %s", e.Decorator, e.Service)
}

// AlreadyFinalizedError represents a mutating call on a builder that has
// already committed its configuration.
type AlreadyFinalizedError struct {
	Service string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("builder for service %s is already finalized", e.Service)
}

// InvalidFactoryError represents a malformed construction recipe rejected by
// the registry.
type InvalidFactoryError struct {
	Type   string
	Reason string
}

func (e *InvalidFactoryError) Error() string {
	return fmt.Sprintf("invalid factory for type %s: %s", e.Type, e.Reason)
}

// NotRegisteredError represents a missing recipe for a requested type.
type NotRegisteredError struct {
	Type string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no recipe registered for type: %s", e.Type)
}

// InvalidScopeError represents a scoped resolution attempted without a scope.
type InvalidScopeError struct {
	Type     string
	Lifetime Lifetime
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("type %s has lifetime %s and must be resolved through a scope", e.Type, e.Lifetime)
}

// CircularDependencyError represents a circular dependency detection error.
type CircularDependencyError struct {
	Type string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected for type: %s", e.Type)
}

// ConstructionError represents a constructor failure during resolution.
type ConstructionError struct {
	Type string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction failed for type %s: %v", e.Type, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// TypeMismatchError represents a type assertion failure.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}
