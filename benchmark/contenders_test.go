package benchmark

import (
	"context"
	"time"

	"github.com/danpasecinic/keel"
)

// app is what a lifecycle scenario starts and stops.
type app interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// contender is one DI library under comparison. A nil scenario means the
// library has no equivalent and is left out of that table.
type contender struct {
	name string

	provideSimple func()
	provideChain  func()
	provideNamed  func(n int)

	// resolve* build and warm a container, then return the operation timed
	// per iteration and a cleanup.
	resolveSingleton func() (op func(), done func())
	resolveChain     func() (op func(), done func())

	lifecycle func(n int, work time.Duration) app
}

var contenders = []contender{
	keelContender(),
	{name: "KeelParallelShutdown", lifecycle: keelLifecycle(keel.WithParallelShutdown())},
	doContender(),
	digContender(),
	fxContender(),
}

func keelContender() contender {
	ctx := context.Background()

	return contender{
		name: "Keel",
		provideSimple: func() {
			_ = keel.ProvideValue(keel.New(), newConfig())
		},
		provideChain: func() {
			provideKeelChain(keel.New())
		},
		provideNamed: func(n int) {
			c := keel.New()
			for j := 0; j < n; j++ {
				_ = keel.ProvideNamed(
					c, serviceName(j), func(ctx context.Context, r keel.Resolver) (*Config, error) {
						return &Config{Port: j}, nil
					},
				)
			}
		},
		resolveSingleton: func() (func(), func()) {
			c := keel.New()
			_ = keel.ProvideValue(c, newConfig())
			_ = c.Start(ctx)
			return func() { _, _ = keel.Invoke[*Config](c) }, func() { _ = c.Stop(ctx) }
		},
		resolveChain: func() (func(), func()) {
			c := keel.New()
			provideKeelChain(c)
			_ = c.Start(ctx)
			return func() { _, _ = keel.Invoke[*Service](c) }, func() { _ = c.Stop(ctx) }
		},
		lifecycle: keelLifecycle(),
	}
}

func provideKeelChain(c *keel.Container) {
	_ = keel.ProvideValue(c, newConfig())
	_ = keel.ProvideValue(c, newLogger())
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Database, error) {
			return newDatabase(keel.MustInvokeCtx[*Config](ctx, r), keel.MustInvokeCtx[*Logger](ctx, r)), nil
		},
	)
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Cache, error) {
			return newCache(keel.MustInvokeCtx[*Logger](ctx, r)), nil
		},
	)
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Repository, error) {
			return newRepository(keel.MustInvokeCtx[*Database](ctx, r), keel.MustInvokeCtx[*Cache](ctx, r)), nil
		},
	)
	_ = keel.Provide(
		c, func(ctx context.Context, r keel.Resolver) (*Service, error) {
			return newService(keel.MustInvokeCtx[*Repository](ctx, r), keel.MustInvokeCtx[*Logger](ctx, r)), nil
		},
	)
}

func keelLifecycle(opts ...keel.Option) func(n int, work time.Duration) app {
	return func(n int, work time.Duration) app {
		c := keel.New(opts...)
		for j := 0; j < n; j++ {
			var hooks []keel.ProviderOption
			if work > 0 {
				hooks = append(hooks, keel.WithOnStart(sleep(work)), keel.WithOnStop(sleep(work)))
			}
			_ = keel.ProvideNamed(
				c, serviceName(j), func(ctx context.Context, r keel.Resolver) (*Config, error) {
					return &Config{Port: j}, nil
				},
				hooks...,
			)
		}
		return c
	}
}
