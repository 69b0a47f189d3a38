package decor

import (
	"fmt"
	"reflect"
	"sync"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// recipe holds a validated constructor together with the reflection metadata
// needed to invoke it during resolution.
type recipe struct {
	implType   reflect.Type
	ctor       reflect.Value
	paramTypes []reflect.Type
	hasErr     bool
	wrapsInner bool // first parameter receives the wrapped instance
}

// binding is one registration of a service type: a base recipe, its lifetime,
// and the decorators wrapped around it in application order.
type binding struct {
	lifetime   Lifetime
	base       *recipe
	decorators []*recipe

	mu       sync.Mutex
	instance any // singleton cache
}

// Registry maps service types to construction recipes and resolves fully
// decorated instances on demand. It provides thread-safe access to bindings
// and handles recursive constructor-parameter resolution.
//
// Registrations for the same service type accumulate in order; resolution
// always uses the newest one, so a later recipe shadows earlier ones.
type Registry struct {
	mu       sync.RWMutex
	bindings map[reflect.Type][]*binding
}

var _ Registrar = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[reflect.Type][]*binding, 32),
	}
}

// checkCtor validates a constructor for a service type and returns the
// implementation type derived from its first return value. A non-empty
// reason describes the violation.
func checkCtor(service reflect.Type, ctor any, decorator bool) (reflect.Type, string) {
	if ctor == nil {
		return nil, "nil constructor"
	}
	t := reflect.TypeOf(ctor)
	if t.Kind() != reflect.Func {
		return nil, fmt.Sprintf("constructor must be a function, got %s", t.Kind())
	}
	if t.IsVariadic() {
		return nil, "variadic constructors are not supported"
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if !t.Out(1).Implements(errType) {
			return nil, "second return value must be error"
		}
	default:
		return nil, fmt.Sprintf("constructor must return one value plus an optional error, got %d values", t.NumOut())
	}
	impl := t.Out(0)
	if impl.Kind() == reflect.Interface {
		return nil, fmt.Sprintf("constructor must return a concrete type, got interface %s", impl)
	}
	if !impl.AssignableTo(service) {
		return nil, fmt.Sprintf("type %s does not satisfy %s", impl, service)
	}
	if decorator {
		if t.NumIn() == 0 || !service.AssignableTo(t.In(0)) {
			return nil, fmt.Sprintf("decorator constructor must accept %s as its first parameter", service)
		}
	}
	return impl, ""
}

func newRecipe(service reflect.Type, ctor any, decorator bool) (*recipe, error) {
	implType, reason := checkCtor(service, ctor, decorator)
	if reason != "" {
		return nil, &InvalidFactoryError{Type: service.String(), Reason: reason}
	}
	ctorVal := reflect.ValueOf(ctor)
	ctorType := ctorVal.Type()
	paramTypes := make([]reflect.Type, ctorType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = ctorType.In(i)
	}
	return &recipe{
		implType:   implType,
		ctor:       ctorVal,
		paramTypes: paramTypes,
		hasErr:     ctorType.NumOut() == 2,
		wrapsInner: decorator,
	}, nil
}

// AddRecipe registers a construction recipe for the service type.
// Returns InvalidFactoryError if the constructor is malformed or the
// lifetime is not one of the recognized values.
func (r *Registry) AddRecipe(service reflect.Type, ctor any, lifetime Lifetime) error {
	if service == nil {
		return &InvalidFactoryError{Type: "<nil>", Reason: "nil service type"}
	}
	if !lifetime.valid() {
		return &InvalidFactoryError{Type: service.String(), Reason: fmt.Sprintf("unknown lifetime %q", lifetime)}
	}
	rec, err := newRecipe(service, ctor, false)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[service] = append(r.bindings[service], &binding{
		lifetime: lifetime,
		base:     rec,
	})
	return nil
}

// Wrap decorates the newest registration of the service type. Each call makes
// the given decorator the new outermost layer.
// Returns NotRegisteredError if no recipe exists for the service and
// InvalidFactoryError if the decorator constructor is malformed.
func (r *Registry) Wrap(service reflect.Type, decorator any) error {
	if service == nil {
		return &InvalidFactoryError{Type: "<nil>", Reason: "nil service type"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	bs := r.bindings[service]
	if len(bs) == 0 {
		return &NotRegisteredError{Type: service.String()}
	}
	rec, err := newRecipe(service, decorator, true)
	if err != nil {
		return err
	}
	b := bs[len(bs)-1]
	b.decorators = append(b.decorators, rec)
	return nil
}

// Registered reports whether at least one recipe exists for the service type.
func (r *Registry) Registered(service reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings[service]) > 0
}

// Reset clears all registry state.
// This function is intended for testing purposes only.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = make(map[reflect.Type][]*binding, 32)
}

// Resolve returns the decorated instance registered for T.
// Returns NotRegisteredError if no recipe exists for T,
// InvalidScopeError if T has scoped lifetime (use ResolveScoped),
// CircularDependencyError if constructor parameters form a cycle,
// and ConstructionError if a constructor fails.
func Resolve[T any](r *Registry) (T, error) {
	return resolveAs[T](r, nil)
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](r *Registry) T {
	instance, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return instance
}

func resolveAs[T any](r *Registry, scope *Scope) (T, error) {
	var zero T
	service := ServiceType[T]()
	instance, err := r.resolve(service, scope, make(map[reflect.Type]bool))
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: service.String(), Got: reflect.TypeOf(instance).String()}
	}
	return typed, nil
}

func (r *Registry) resolve(service reflect.Type, scope *Scope, track map[reflect.Type]bool) (any, error) {
	// The decorator slice is snapshotted under the read lock so a concurrent
	// Wrap on the same service cannot race resolution.
	r.mu.RLock()
	bs := r.bindings[service]
	var b *binding
	var decorators []*recipe
	if len(bs) > 0 {
		b = bs[len(bs)-1]
		decorators = append([]*recipe(nil), b.decorators...)
	}
	r.mu.RUnlock()
	if b == nil {
		return nil, &NotRegisteredError{Type: service.String()}
	}

	if track[service] {
		return nil, &CircularDependencyError{Type: service.String()}
	}
	track[service] = true
	defer delete(track, service)

	switch b.lifetime {
	case LifetimeSingleton:
		b.mu.Lock()
		if b.instance != nil {
			instance := b.instance
			b.mu.Unlock()
			return instance, nil
		}
		b.mu.Unlock()

		// Built outside the binding lock so dependency resolution cannot
		// deadlock; the first successful build wins.
		instance, err := r.build(b.base, decorators, scope, track)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if b.instance == nil {
			b.instance = instance
		}
		instance = b.instance
		b.mu.Unlock()
		return instance, nil

	case LifetimeScoped:
		if scope == nil {
			return nil, &InvalidScopeError{Type: service.String(), Lifetime: LifetimeScoped}
		}
		if instance, ok := scope.get(service); ok {
			return instance, nil
		}
		instance, err := r.build(b.base, decorators, scope, track)
		if err != nil {
			return nil, err
		}
		return scope.put(service, instance), nil

	default:
		return r.build(b.base, decorators, scope, track)
	}
}

// build constructs the base implementation and applies the decorators in
// registration order, each becoming the new outermost layer.
func (r *Registry) build(base *recipe, decorators []*recipe, scope *Scope, track map[reflect.Type]bool) (any, error) {
	instance, err := r.invoke(base, nil, scope, track)
	if err != nil {
		return nil, err
	}
	for _, dec := range decorators {
		instance, err = r.invoke(dec, instance, scope, track)
		if err != nil {
			return nil, err
		}
	}
	return instance, nil
}

func (r *Registry) invoke(rec *recipe, inner any, scope *Scope, track map[reflect.Type]bool) (any, error) {
	args := make([]reflect.Value, len(rec.paramTypes))
	for i, paramType := range rec.paramTypes {
		if i == 0 && rec.wrapsInner {
			args[i] = reflect.ValueOf(inner)
			continue
		}
		dep, err := r.resolve(paramType, scope, track)
		if err != nil {
			return nil, err
		}
		args[i] = reflect.ValueOf(dep)
	}

	out := rec.ctor.Call(args)
	if rec.hasErr && !out[1].IsNil() {
		return nil, &ConstructionError{Type: rec.implType.String(), Err: out[1].Interface().(error)}
	}
	return out[0].Interface(), nil
}
