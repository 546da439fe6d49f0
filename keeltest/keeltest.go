// Package keeltest wraps a keel container for use in tests: failures end the
// test, the container logs through the test's logger and is stopped when the
// test finishes.
package keeltest

import (
	"context"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/danpasecinic/keel"
)

type TB interface {
	zaptest.TestingT
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Cleanup(f func())
}

type TestContainer struct {
	*keel.Container
	tb TB
}

// New builds a container that logs warnings and errors through tb. Options
// are applied after the test logger, so WithLogger still wins.
func New(tb TB, opts ...keel.Option) *TestContainer {
	tb.Helper()

	logger := zaptest.NewLogger(tb, zaptest.Level(zapcore.WarnLevel))
	opts = append([]keel.Option{keel.WithZapLogger(logger), keel.WithContainerName(tb.Name())}, opts...)

	c := keel.New(opts...)
	tc := &TestContainer{
		Container: c,
		tb:        tb,
	}

	tb.Cleanup(func() {
		if err := c.Stop(context.Background()); err != nil {
			tb.Fatalf("failed to stop container: %v", err)
		}
	})

	return tc
}

func (tc *TestContainer) RequireStart(ctx context.Context) {
	tc.tb.Helper()

	if err := tc.Start(ctx); err != nil {
		tc.tb.Fatalf("failed to start container: %v", err)
	}
}

func (tc *TestContainer) RequireStop(ctx context.Context) {
	tc.tb.Helper()

	if err := tc.Stop(ctx); err != nil {
		tc.tb.Fatalf("failed to stop container: %v", err)
	}
}

func (tc *TestContainer) RequireValidate() {
	tc.tb.Helper()

	if err := tc.Validate(); err != nil {
		tc.tb.Fatalf("container validation failed: %v", err)
	}
}

// RequireHealthy fails the test when any constructed service reports
// unhealthy or times out.
func (tc *TestContainer) RequireHealthy(ctx context.Context) {
	tc.tb.Helper()

	if err := tc.Live(ctx); err != nil {
		tc.tb.Fatalf("container is not healthy: %v", err)
	}
}

// Replace swaps T for value. It must run before T is first resolved.
func Replace[T any](tc *TestContainer, value T) {
	tc.tb.Helper()

	if err := keel.ReplaceValue(tc.Container, value); err != nil {
		tc.tb.Fatalf("failed to replace %s: %v", keel.Key[T](), err)
	}
}

func ReplaceNamed[T any](tc *TestContainer, name string, value T) {
	tc.tb.Helper()

	if err := keel.ReplaceNamedValue(tc.Container, name, value); err != nil {
		tc.tb.Fatalf("failed to replace %s: %v", keel.KeyNamed[T](name), err)
	}
}

func ReplaceProvider[T any](tc *TestContainer, provider keel.Provider[T], opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.Replace(tc.Container, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to replace provider %s: %v", keel.Key[T](), err)
	}
}

func ReplaceNamedProvider[T any](tc *TestContainer, name string, provider keel.Provider[T], opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.ReplaceNamed(tc.Container, name, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to replace provider %s: %v", keel.KeyNamed[T](name), err)
	}
}

func AssertHas[T any](tc *TestContainer) {
	tc.tb.Helper()

	if !keel.Has[T](tc.Container) {
		tc.tb.Fatalf("expected container to have %s", keel.Key[T]())
	}
}

func AssertHasNamed[T any](tc *TestContainer, name string) {
	tc.tb.Helper()

	if !keel.HasNamed[T](tc.Container, name) {
		tc.tb.Fatalf("expected container to have %s", keel.KeyNamed[T](name))
	}
}

func AssertNotHas[T any](tc *TestContainer) {
	tc.tb.Helper()

	if keel.Has[T](tc.Container) {
		tc.tb.Fatalf("expected container to not have %s", keel.Key[T]())
	}
}

func MustInvoke[T any](tc *TestContainer) T {
	tc.tb.Helper()

	v, err := keel.Invoke[T](tc.Container)
	if err != nil {
		tc.tb.Fatalf("failed to invoke %s: %v", keel.Key[T](), err)
	}
	return v
}

func MustInvokeNamed[T any](tc *TestContainer, name string) T {
	tc.tb.Helper()

	v, err := keel.InvokeNamed[T](tc.Container, name)
	if err != nil {
		tc.tb.Fatalf("failed to invoke %s: %v", keel.KeyNamed[T](name), err)
	}
	return v
}

func MustProvide[T any](tc *TestContainer, provider keel.Provider[T], opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.Provide(tc.Container, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to provide %s: %v", keel.Key[T](), err)
	}
}

func MustProvideValue[T any](tc *TestContainer, value T, opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.ProvideValue(tc.Container, value, opts...); err != nil {
		tc.tb.Fatalf("failed to provide value %s: %v", keel.Key[T](), err)
	}
}

func MustProvideNamed[T any](tc *TestContainer, name string, provider keel.Provider[T], opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.ProvideNamed(tc.Container, name, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to provide %s: %v", keel.KeyNamed[T](name), err)
	}
}

func MustProvideNamedValue[T any](tc *TestContainer, name string, value T, opts ...keel.ProviderOption) {
	tc.tb.Helper()

	if err := keel.ProvideNamedValue(tc.Container, name, value, opts...); err != nil {
		tc.tb.Fatalf("failed to provide value %s: %v", keel.KeyNamed[T](name), err)
	}
}
