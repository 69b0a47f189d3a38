package decor

import (
	"fmt"
	"reflect"
	"sync"
)

// builderState tags the builder lifecycle so finalized builders cannot be
// mutated by accident.
type builderState int

const (
	stateOpen builderState = iota
	stateFinalized
)

type chainEntry struct {
	implType reflect.Type
	ctor     any
}

// ChainBuilder accumulates the registration of one service: a base
// implementation, its lifetime, and an ordered, duplicate-free chain of
// decorators. Register commits the accumulated configuration to the
// registrar exactly once, after which the builder is permanently inert.
//
// A ChainBuilder is safe for concurrent use: each call is atomic with
// respect to other calls on the same builder. The configure-then-register
// sequence as a whole is not atomic, so goroutines sharing one builder may
// observe AlreadyFinalizedError once any of them registers.
type ChainBuilder struct {
	mu        sync.Mutex
	registrar Registrar
	service   reflect.Type
	baseCtor  any
	baseType  reflect.Type
	lifetime  Lifetime
	chain     []chainEntry
	state     builderState
}

// BeginDecoration creates a builder that registers a base implementation for
// the service T and wraps it with decorators. The base constructor is a
// function returning the concrete implementation (optionally with a trailing
// error); its parameters are resolved from the registry at resolution time.
// The lifetime defaults to LifetimeTransient.
// Returns InvalidArgumentError if the registrar is nil or the constructor
// does not produce an implementation of T.
func BeginDecoration[T any](reg Registrar, baseCtor any) (*ChainBuilder, error) {
	if reg == nil {
		return nil, &InvalidArgumentError{Reason: "nil registry"}
	}
	if v := reflect.ValueOf(reg); v.Kind() == reflect.Ptr && v.IsNil() {
		return nil, &InvalidArgumentError{Reason: "nil registry"}
	}

	service := ServiceType[T]()
	implType, reason := checkCtor(service, baseCtor, false)
	if reason != "" {
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("base constructor for %s: %s", service, reason)}
	}

	return &ChainBuilder{
		registrar: reg,
		service:   service,
		baseCtor:  baseCtor,
		baseType:  implType,
		lifetime:  LifetimeTransient,
	}, nil
}

// MustBeginDecoration is like BeginDecoration but panics on error.
func MustBeginDecoration[T any](reg Registrar, baseCtor any) *ChainBuilder {
	b, err := BeginDecoration[T](reg, baseCtor)
	if err != nil {
		panic(err)
	}
	return b
}

// WithLifetime sets the lifetime of the base implementation. The last call
// before Register wins.
// Returns AlreadyFinalizedError after Register and InvalidArgumentError for
// an unrecognized lifetime.
func (b *ChainBuilder) WithLifetime(lifetime Lifetime) (*ChainBuilder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateFinalized {
		return b, &AlreadyFinalizedError{Service: b.service.String()}
	}
	if !lifetime.valid() {
		return b, &InvalidArgumentError{Reason: fmt.Sprintf("unknown lifetime %q", lifetime)}
	}
	b.lifetime = lifetime
	return b, nil
}

// MustWithLifetime is like WithLifetime but panics on error.
func (b *ChainBuilder) MustWithLifetime(lifetime Lifetime) *ChainBuilder {
	if _, err := b.WithLifetime(lifetime); err != nil {
		panic(err)
	}
	return b
}

// DecoratedBy appends a decorator to the chain. The constructor takes the
// wrapped instance as its first parameter and returns the concrete decorator
// type; further parameters are resolved from the registry. The first
// decorator added ends up innermost, the last one outermost.
// Returns AlreadyFinalizedError after Register, InvalidArgumentError for a
// malformed constructor, and DuplicateDecoratorError if the decorator's
// implementation type is already in the chain (the chain is left unchanged).
func (b *ChainBuilder) DecoratedBy(ctor any) (*ChainBuilder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateFinalized {
		return b, &AlreadyFinalizedError{Service: b.service.String()}
	}
	implType, reason := checkCtor(b.service, ctor, true)
	if reason != "" {
		return b, &InvalidArgumentError{Reason: fmt.Sprintf("decorator constructor for %s: %s", b.service, reason)}
	}
	for _, entry := range b.chain {
		if entry.implType == implType {
			return b, &DuplicateDecoratorError{
				Service:   b.service.String(),
				Decorator: implType.String(),
			}
		}
	}

	b.chain = append(b.chain, chainEntry{implType: implType, ctor: ctor})
	return b, nil
}

// MustDecoratedBy is like DecoratedBy but panics on error.
func (b *ChainBuilder) MustDecoratedBy(ctor any) *ChainBuilder {
	if _, err := b.DecoratedBy(ctor); err != nil {
		panic(err)
	}
	return b
}

// Register commits the accumulated configuration: it adds the base recipe
// under the chosen lifetime, then wraps it once per decorator in insertion
// order, and returns the registrar for further configuration.
// Returns AlreadyFinalizedError if called twice; the second call performs no
// registry mutation. Registrar errors propagate unchanged. The builder is
// finalized before the first mutation, so a failed commit cannot be retried
// through the same builder; if a wrap fails partway through the chain the
// registry is left partially decorated and no rollback is attempted.
func (b *ChainBuilder) Register() (Registrar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateFinalized {
		return nil, &AlreadyFinalizedError{Service: b.service.String()}
	}
	b.state = stateFinalized

	if err := b.registrar.AddRecipe(b.service, b.baseCtor, b.lifetime); err != nil {
		return nil, err
	}
	for _, entry := range b.chain {
		if err := b.registrar.Wrap(b.service, entry.ctor); err != nil {
			return nil, err
		}
	}
	return b.registrar, nil
}

// MustRegister is like Register but panics on error.
func (b *ChainBuilder) MustRegister() Registrar {
	reg, err := b.Register()
	if err != nil {
		panic(err)
	}
	return reg
}

// Service returns the service type the builder registers.
func (b *ChainBuilder) Service() reflect.Type {
	return b.service
}

// Lifetime returns the currently chosen lifetime.
func (b *ChainBuilder) Lifetime() Lifetime {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lifetime
}

// Chain returns the decorator implementation types accumulated so far, in
// insertion order.
func (b *ChainBuilder) Chain() []reflect.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]reflect.Type, len(b.chain))
	for i, entry := range b.chain {
		types[i] = entry.implType
	}
	return types
}
