package decor_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/servicekit/decor"
	"github.com/servicekit/decor/mock"
	"github.com/stretchr/testify/suite"
)

// failingRegistrar stands in for a registry whose primitives fail, so tests
// can observe error propagation and the exact mutation sequence.
type failingRegistrar struct {
	addErr      error
	wrapErr     error
	wrapErrAt   int // fail on the nth Wrap call, 0 never fails
	addCalls    int
	wrapCalls   int
	lifetimes   []decor.Lifetime
	wrapOrder   []reflect.Type
	lastService reflect.Type
}

func (f *failingRegistrar) AddRecipe(service reflect.Type, ctor any, lifetime decor.Lifetime) error {
	f.addCalls++
	f.lastService = service
	f.lifetimes = append(f.lifetimes, lifetime)
	return f.addErr
}

func (f *failingRegistrar) Wrap(service reflect.Type, decorator any) error {
	f.wrapCalls++
	f.wrapOrder = append(f.wrapOrder, reflect.TypeOf(decorator).Out(0))
	if f.wrapErrAt != 0 && f.wrapCalls >= f.wrapErrAt {
		return f.wrapErr
	}
	return nil
}

type BuilderTestSuite struct {
	suite.Suite
	registry *decor.Registry
}

func (s *BuilderTestSuite) SetupTest() {
	s.registry = decor.NewRegistry()
	mock.ResetCounters()
}

func (s *BuilderTestSuite) TestBeginDecoration() {
	s.Run("NilRegistry", func() {
		_, err := decor.BeginDecoration[mock.Notifier](nil, mock.NewEmailNotifier)
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("NilRegistryPointer", func() {
		var reg *decor.Registry
		_, err := decor.BeginDecoration[mock.Notifier](reg, mock.NewEmailNotifier)
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("BaseNotAFunction", func() {
		_, err := decor.BeginDecoration[mock.Notifier](s.registry, 42)
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("BaseDoesNotImplementService", func() {
		_, err := decor.BeginDecoration[mock.LoopA](s.registry, mock.NewEmailNotifier)
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("Defaults", func() {
		b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
		s.NoError(err)
		s.NotNil(b)
		s.Equal(decor.LifetimeTransient, b.Lifetime())
		s.Empty(b.Chain())
		s.Equal(decor.ServiceType[mock.Notifier](), b.Service())
	})
}

func (s *BuilderTestSuite) TestChainAccumulation() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)

	_, err = b.DecoratedBy(mock.NewRetryNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewMetricsNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewAuditNotifier)
	s.NoError(err)

	chain := b.Chain()
	s.Len(chain, 3)
	s.Equal(reflect.TypeOf((*mock.RetryNotifier)(nil)), chain[0])
	s.Equal(reflect.TypeOf((*mock.MetricsNotifier)(nil)), chain[1])
	s.Equal(reflect.TypeOf((*mock.AuditNotifier)(nil)), chain[2])
}

func (s *BuilderTestSuite) TestDuplicateDecorator() {
	s.Run("Consecutive", func() {
		b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
		s.NoError(err)

		_, err = b.DecoratedBy(mock.NewRetryNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewRetryNotifier)

		var dupErr *decor.DuplicateDecoratorError
		s.True(errors.As(err, &dupErr))
		s.Equal("mock.Notifier", dupErr.Service)
		s.Equal("*mock.RetryNotifier", dupErr.Decorator)
		s.Len(b.Chain(), 1)
	})

	s.Run("NonConsecutive", func() {
		b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
		s.NoError(err)

		_, err = b.DecoratedBy(mock.NewRetryNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewMetricsNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewRetryNotifier)

		var dupErr *decor.DuplicateDecoratorError
		s.True(errors.As(err, &dupErr))
		s.Len(b.Chain(), 2)
	})
}

func (s *BuilderTestSuite) TestInvalidDecorator() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)

	s.Run("NotAFunction", func() {
		_, err := b.DecoratedBy("retry")
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("NoInnerParameter", func() {
		_, err := b.DecoratedBy(mock.NewEmailNotifier)
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Run("WrongReturnType", func() {
		_, err := b.DecoratedBy(func(inner mock.Notifier) *mock.Config { return nil })
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
	})

	s.Empty(b.Chain())
}

func (s *BuilderTestSuite) TestLifetime() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)

	s.Run("Unrecognized", func() {
		_, err := b.WithLifetime(decor.Lifetime("pooled"))
		var argErr *decor.InvalidArgumentError
		s.True(errors.As(err, &argErr))
		s.Equal(decor.LifetimeTransient, b.Lifetime())
	})

	s.Run("LastCallWins", func() {
		_, err := b.WithLifetime(decor.LifetimeScoped)
		s.NoError(err)
		_, err = b.WithLifetime(decor.LifetimeSingleton)
		s.NoError(err)
		s.Equal(decor.LifetimeSingleton, b.Lifetime())
	})
}

func (s *BuilderTestSuite) TestWrapOrder() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewRetryNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewMetricsNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewAuditNotifier)
	s.NoError(err)
	_, err = b.Register()
	s.NoError(err)

	notifier, err := decor.Resolve[mock.Notifier](s.registry)
	s.NoError(err)
	s.Equal("audit(metrics(retry(email:hi)))", notifier.Send("hi"))
}

func (s *BuilderTestSuite) TestSingletonScenario() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)
	reg := b.MustWithLifetime(decor.LifetimeSingleton).
		MustDecoratedBy(mock.NewRetryNotifier).
		MustDecoratedBy(mock.NewMetricsNotifier).
		MustRegister()
	s.Same(s.registry, reg)

	first, err := decor.Resolve[mock.Notifier](s.registry)
	s.NoError(err)
	s.Equal("metrics(retry(email:ping))", first.Send("ping"))

	second, err := decor.Resolve[mock.Notifier](s.registry)
	s.NoError(err)
	s.Same(first, second)
	s.Equal(int64(1), mock.EmailInstances())
}

func (s *BuilderTestSuite) TestAlreadyFinalized() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewRetryNotifier)
	s.NoError(err)
	_, err = b.Register()
	s.NoError(err)

	var finErr *decor.AlreadyFinalizedError

	_, err = b.WithLifetime(decor.LifetimeScoped)
	s.True(errors.As(err, &finErr))
	s.Equal("mock.Notifier", finErr.Service)

	_, err = b.DecoratedBy(mock.NewMetricsNotifier)
	s.True(errors.As(err, &finErr))
	s.Len(b.Chain(), 1)

	_, err = b.Register()
	s.True(errors.As(err, &finErr))

	// The failed calls left the registry untouched.
	notifier, err := decor.Resolve[mock.Notifier](s.registry)
	s.NoError(err)
	s.Equal("retry(email:hi)", notifier.Send("hi"))
}

func (s *BuilderTestSuite) TestRegisterNotReapplied() {
	stub := &failingRegistrar{}
	b, err := decor.BeginDecoration[mock.Notifier](stub, mock.NewEmailNotifier)
	s.NoError(err)
	_, err = b.DecoratedBy(mock.NewRetryNotifier)
	s.NoError(err)

	_, err = b.Register()
	s.NoError(err)
	_, err = b.Register()
	var finErr *decor.AlreadyFinalizedError
	s.True(errors.As(err, &finErr))

	s.Equal(1, stub.addCalls)
	s.Equal(1, stub.wrapCalls)
	s.Equal(decor.ServiceType[mock.Notifier](), stub.lastService)
	s.Equal([]decor.Lifetime{decor.LifetimeTransient}, stub.lifetimes)
}

func (s *BuilderTestSuite) TestRegistryErrorPropagation() {
	s.Run("AddRecipeFailure", func() {
		bindFailed := errors.New("bind failed")
		stub := &failingRegistrar{addErr: bindFailed}
		b, err := decor.BeginDecoration[mock.Notifier](stub, mock.NewEmailNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewRetryNotifier)
		s.NoError(err)

		_, err = b.Register()
		s.ErrorIs(err, bindFailed)
		s.Equal(1, stub.addCalls)
		s.Zero(stub.wrapCalls)

		// A failed commit still finalizes the builder.
		_, err = b.WithLifetime(decor.LifetimeSingleton)
		var finErr *decor.AlreadyFinalizedError
		s.True(errors.As(err, &finErr))
	})

	s.Run("WrapFailureMidChain", func() {
		wrapFailed := errors.New("wrap failed")
		stub := &failingRegistrar{wrapErr: wrapFailed, wrapErrAt: 2}
		b, err := decor.BeginDecoration[mock.Notifier](stub, mock.NewEmailNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewRetryNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewMetricsNotifier)
		s.NoError(err)
		_, err = b.DecoratedBy(mock.NewAuditNotifier)
		s.NoError(err)

		_, err = b.Register()
		s.ErrorIs(err, wrapFailed)

		// The commit stopped at the failing wrap and rolled nothing back.
		s.Equal(1, stub.addCalls)
		s.Equal(2, stub.wrapCalls)
		s.Equal(reflect.TypeOf((*mock.RetryNotifier)(nil)), stub.wrapOrder[0])
		s.Equal(reflect.TypeOf((*mock.MetricsNotifier)(nil)), stub.wrapOrder[1])
	})
}

func (s *BuilderTestSuite) TestMustVariantsPanic() {
	b := decor.MustBeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	b.MustDecoratedBy(mock.NewRetryNotifier)

	s.Panics(func() {
		b.MustDecoratedBy(mock.NewRetryNotifier)
	})
	s.Panics(func() {
		b.MustWithLifetime(decor.Lifetime("pooled"))
	})
	s.Panics(func() {
		decor.MustBeginDecoration[mock.Notifier](nil, mock.NewEmailNotifier)
	})
}

func (s *BuilderTestSuite) TestConcurrentConfiguration() {
	b, err := decor.BeginDecoration[mock.Notifier](s.registry, mock.NewEmailNotifier)
	s.NoError(err)

	ctors := []any{
		mock.NewRetryNotifier,
		mock.NewMetricsNotifier,
		mock.NewAuditNotifier,
	}

	var wg sync.WaitGroup
	failures := make(chan error, len(ctors)+1)

	for _, ctor := range ctors {
		wg.Add(1)
		go func(ctor any) {
			defer wg.Done()
			if _, err := b.DecoratedBy(ctor); err != nil {
				failures <- err
			}
		}(ctor)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := b.Register(); err != nil {
			failures <- err
		}
	}()

	wg.Wait()
	close(failures)

	// Losing racers may observe the finalized builder, but nothing else.
	for err := range failures {
		var finErr *decor.AlreadyFinalizedError
		s.True(errors.As(err, &finErr), "unexpected error: %v", err)
	}

	// Whatever configuration won the race committed cleanly.
	notifier, err := decor.Resolve[mock.Notifier](s.registry)
	s.NoError(err)
	s.NotNil(notifier)
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}
