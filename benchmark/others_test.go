package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"go.uber.org/dig"
	"go.uber.org/fx"
)

func doContender() contender {
	return contender{
		name: "Do",
		provideSimple: func() {
			do.ProvideValue(do.New(), newConfig())
		},
		provideChain: func() {
			provideDoChain(do.New())
		},
		provideNamed: func(n int) {
			injector := do.New()
			for j := 0; j < n; j++ {
				do.ProvideNamed(
					injector, serviceName(j), func(do.Injector) (*Config, error) {
						return &Config{Port: j}, nil
					},
				)
			}
		},
		resolveSingleton: func() (func(), func()) {
			injector := do.New()
			do.ProvideValue(injector, newConfig())
			_ = do.MustInvoke[*Config](injector)
			return func() { _ = do.MustInvoke[*Config](injector) }, func() {}
		},
		resolveChain: func() (func(), func()) {
			injector := do.New()
			provideDoChain(injector)
			_ = do.MustInvoke[*Service](injector)
			return func() { _ = do.MustInvoke[*Service](injector) }, func() {}
		},
	}
}

func provideDoChain(injector do.Injector) {
	do.ProvideValue(injector, newConfig())
	do.ProvideValue(injector, newLogger())
	do.Provide(
		injector, func(i do.Injector) (*Database, error) {
			return newDatabase(do.MustInvoke[*Config](i), do.MustInvoke[*Logger](i)), nil
		},
	)
	do.Provide(
		injector, func(i do.Injector) (*Cache, error) {
			return newCache(do.MustInvoke[*Logger](i)), nil
		},
	)
	do.Provide(
		injector, func(i do.Injector) (*Repository, error) {
			return newRepository(do.MustInvoke[*Database](i), do.MustInvoke[*Cache](i)), nil
		},
	)
	do.Provide(
		injector, func(i do.Injector) (*Service, error) {
			return newService(do.MustInvoke[*Repository](i), do.MustInvoke[*Logger](i)), nil
		},
	)
}

var chainConstructors = []any{newConfig, newLogger, newDatabase, newCache, newRepository, newService}

func digContender() contender {
	provideChain := func(c *dig.Container) {
		for _, ctor := range chainConstructors {
			_ = c.Provide(ctor)
		}
	}

	return contender{
		name: "Dig",
		provideSimple: func() {
			_ = dig.New().Provide(newConfig)
		},
		provideChain: func() {
			provideChain(dig.New())
		},
		provideNamed: func(n int) {
			c := dig.New()
			for j := 0; j < n; j++ {
				_ = c.Provide(func() *Config { return &Config{Port: j} }, dig.Name(serviceName(j)))
			}
		},
		resolveSingleton: func() (func(), func()) {
			c := dig.New()
			_ = c.Provide(newConfig)
			_ = c.Invoke(func(*Config) {})
			return func() { _ = c.Invoke(func(*Config) {}) }, func() {}
		},
		resolveChain: func() (func(), func()) {
			c := dig.New()
			provideChain(c)
			_ = c.Invoke(func(*Service) {})
			return func() { _ = c.Invoke(func(*Service) {}) }, func() {}
		},
	}
}

// fx resolves everything up front; its per-iteration resolve cost is a
// field read.
func fxContender() contender {
	ctx := context.Background()

	return contender{
		name: "Fx",
		provideSimple: func() {
			_ = fx.New(fx.NopLogger, fx.Provide(newConfig))
		},
		provideChain: func() {
			_ = fx.New(fx.NopLogger, fx.Provide(chainConstructors...))
		},
		provideNamed: func(n int) {
			_ = fx.New(append([]fx.Option{fx.NopLogger}, fxNamed(n, 0)...)...)
		},
		resolveSingleton: func() (func(), func()) {
			var cfg *Config
			app := fx.New(fx.NopLogger, fx.Provide(newConfig), fx.Populate(&cfg))
			_ = app.Start(ctx)
			return func() { _ = cfg }, func() { _ = app.Stop(ctx) }
		},
		resolveChain: func() (func(), func()) {
			var svc *Service
			app := fx.New(fx.NopLogger, fx.Provide(chainConstructors...), fx.Populate(&svc))
			_ = app.Start(ctx)
			return func() { _ = svc }, func() { _ = app.Stop(ctx) }
		},
		lifecycle: func(n int, work time.Duration) app {
			invokers := make([]any, n)
			for j := 0; j < n; j++ {
				invokers[j] = fx.Annotate(
					func(*Config) {},
					fx.ParamTags(fmt.Sprintf(`name:"%s"`, serviceName(j))),
				)
			}

			opts := append([]fx.Option{fx.NopLogger, fx.Invoke(invokers...)}, fxNamed(n, work)...)
			return fx.New(opts...)
		},
	}
}

// fxNamed provides n named configs, each with sleeping hooks when work is
// positive.
func fxNamed(n int, work time.Duration) []fx.Option {
	providers := make([]fx.Option, n)
	for j := 0; j < n; j++ {
		providers[j] = fx.Provide(
			fx.Annotate(
				func(lc fx.Lifecycle) *Config {
					if work > 0 {
						lc.Append(fx.Hook{OnStart: sleep(work), OnStop: sleep(work)})
					}
					return &Config{Port: j}
				},
				fx.ResultTags(fmt.Sprintf(`name:"%s"`, serviceName(j))),
			),
		)
	}
	return providers
}
