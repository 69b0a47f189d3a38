// Package decor registers a service implementation together with an ordered
// chain of decorators in a dependency injection registry.
//
// The entry point is BeginDecoration, which binds a builder to a registry,
// a service type, and a base constructor. The builder accumulates a lifetime
// and zero or more decorators, then Register commits the configuration to
// the registry exactly once:
//
//	b, err := decor.BeginDecoration[Notifier](registry, NewEmailNotifier)
//	if err != nil {
//		return err
//	}
//	b.MustWithLifetime(decor.LifetimeSingleton).
//		MustDecoratedBy(NewRetryNotifier).
//		MustDecoratedBy(NewMetricsNotifier).
//		MustRegister()
//
// Resolving Notifier afterwards yields the metrics decorator wrapping the
// retry decorator wrapping the email notifier: decorators are applied in
// insertion order, so the first one added sits closest to the base
// implementation and the last one added is what callers hit first.
//
// Adding the same decorator implementation type twice fails with
// DuplicateDecoratorError; a decorator applied twice in one chain is almost
// always a copy-paste mistake that would double-wrap the service. Callers
// who genuinely need self-composition must use the registry primitives
// directly.
//
// A builder is single-use. Every mutating call after Register fails with
// AlreadyFinalizedError, including a second Register, which performs no
// registry mutation. A failed commit also finalizes the builder and is not
// retryable; if a wrap fails partway through the chain the registry may be
// left partially decorated.
//
// Builders are safe for concurrent use in the sense that each call is
// atomic, but goroutines sharing one builder race configuration against
// finalization: the committed chain is whatever was accumulated when the
// first Register ran, and later calls observe AlreadyFinalizedError.
// Configure a builder from one goroutine where possible.
//
// The builder talks to the registry through the narrow Registrar contract
// (AddRecipe and Wrap). The Registry in this package implements it with
// constructor recipes, recursive parameter injection and the transient,
// scoped, and singleton lifetimes; hosts with their own container can
// satisfy Registrar to reuse the builder against it.
package decor
