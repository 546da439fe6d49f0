package keel

import (
	"context"

	"github.com/danpasecinic/keel/internal/container"
	"github.com/danpasecinic/keel/internal/reflect"
)

// Provider builds a T. Dependencies must be resolved through r (or with ctx)
// so that the container can record the edge and detect cycles.
type Provider[T any] func(ctx context.Context, r Resolver) (T, error)

type ProviderOption func(*providerConfig)

type providerConfig struct {
	name         string
	dependencies []string
	onStart      []container.Hook
	onStop       []container.Hook
	healthCheck  container.Hook
}

func newProviderConfig(opts []ProviderOption) *providerConfig {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *providerConfig) descriptor(key string, provider container.ProviderFunc) *container.Descriptor {
	return &container.Descriptor{
		Key:          key,
		Provider:     provider,
		Dependencies: cfg.dependencies,
		OnStart:      cfg.onStart,
		OnStop:       cfg.onStop,
		HealthCheck:  cfg.healthCheck,
	}
}

func keyFor[T any](name string) string {
	if name != "" {
		return reflect.TypeKeyNamed[T](name)
	}
	return reflect.TypeKey[T]()
}

func wrapProvider[T any](provider Provider[T]) container.ProviderFunc {
	return func(ctx context.Context, r container.Resolver) (any, error) {
		return provider(ctx, r)
	}
}

// Key returns the identity a service of type T is registered under.
func Key[T any]() string {
	return reflect.TypeKey[T]()
}

func KeyNamed[T any](name string) string {
	return reflect.TypeKeyNamed[T](name)
}

func Provide[T any](c *Container, provider Provider[T], opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	desc := cfg.descriptor(keyFor[T](cfg.name), wrapProvider(provider))
	return translate(c.internal.Register(desc))
}

// ProvideValue registers an already built instance. It counts as
// constructed, so it takes part in shutdown and health checks.
func ProvideValue[T any](c *Container, value T, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	desc := cfg.descriptor(keyFor[T](cfg.name), nil)
	return translate(c.internal.RegisterValue(desc, value))
}

func ProvideNamed[T any](c *Container, name string, provider Provider[T], opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Provide(c, provider, opts...)
}

func ProvideNamedValue[T any](c *Container, name string, value T, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return ProvideValue(c, value, opts...)
}

func MustProvide[T any](c *Container, provider Provider[T], opts ...ProviderOption) {
	if err := Provide(c, provider, opts...); err != nil {
		panic(err)
	}
}

func MustProvideValue[T any](c *Container, value T, opts ...ProviderOption) {
	if err := ProvideValue(c, value, opts...); err != nil {
		panic(err)
	}
}

func WithName(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.name = name
	}
}

// WithDependencies declares edges up front, so that Validate can report
// missing providers and cycles are rejected at registration.
func WithDependencies(deps ...string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.dependencies = deps
	}
}

func WithOnStart(hook Hook) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.onStart = append(cfg.onStart, container.Hook(hook))
	}
}

// WithOnStop adds a teardown hook. Several hooks run in reverse order of
// registration. A service with explicit hooks is not probed for Shutdowner.
func WithOnStop(hook Hook) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.onStop = append(cfg.onStop, container.Hook(hook))
	}
}

// WithHealthCheck sets the probe used instead of a HealthChecker
// implementation.
func WithHealthCheck(hook Hook) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.healthCheck = container.Hook(hook)
	}
}
