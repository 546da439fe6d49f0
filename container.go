package keel

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/danpasecinic/keel/internal/container"
)

type Container struct {
	internal *container.Container
	config   *containerConfig
	id       string
}

type containerConfig struct {
	logger *slog.Logger
	name   string

	healthTimeout       time.Duration
	healthGlobalTimeout time.Duration
	healthParallelism   int
	shutdownTimeout     time.Duration
	parallelShutdown    bool

	onResolve []ResolveHook
	onProvide []ProvideHook
	onStart   []StartHook
	onStop    []StopHook
	onHealth  []ProbeHook
}

// New creates an empty, isolated container.
func New(opts ...Option) *Container {
	cfg := &containerConfig{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	id := uuid.NewString()
	if cfg.name == "" {
		cfg.name = id
	}

	internal := container.New(
		&container.Config{
			Logger:                   cfg.logger.With("container", cfg.name),
			HealthCheckTimeout:       cfg.healthTimeout,
			HealthCheckGlobalTimeout: cfg.healthGlobalTimeout,
			HealthCheckParallelism:   cfg.healthParallelism,
			ShutdownTimeout:          cfg.shutdownTimeout,
			ParallelShutdown:         cfg.parallelShutdown,
			OnResolve:                observers(cfg.onResolve),
			OnProvide:                provideObservers(cfg.onProvide),
			OnStart:                  observers(cfg.onStart),
			OnStop:                   observers(cfg.onStop),
			OnHealth:                 observers(cfg.onHealth),
		},
	)

	return &Container{
		internal: internal,
		config:   cfg,
		id:       id,
	}
}

// observers adapts public hooks so they receive translated errors.
func observers[H ~func(string, time.Duration, error)](hooks []H) []container.ObserveFunc {
	out := make([]container.ObserveFunc, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, func(key string, d time.Duration, err error) {
			hook(key, d, translate(err))
		})
	}
	return out
}

func provideObservers(hooks []ProvideHook) []func(string) {
	out := make([]func(string), 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, hook)
	}
	return out
}

// ID is a random identifier assigned at creation.
func (c *Container) ID() string {
	return c.id
}

// Name returns the name given with WithContainerName, or the ID.
func (c *Container) Name() string {
	return c.config.name
}

func (c *Container) Resolve(ctx context.Context, key string) (any, error) {
	instance, err := c.internal.Resolve(ctx, key)
	if err != nil {
		return nil, translate(err)
	}
	return instance, nil
}

func (c *Container) Has(key string) bool {
	return c.internal.Has(key)
}

// Validate reports declared dependencies that have no provider.
func (c *Container) Validate() error {
	if err := c.internal.Validate(); err != nil {
		return errValidationFailed(err)
	}
	return nil
}

func (c *Container) Size() int {
	return c.internal.Size()
}

func (c *Container) Keys() []string {
	return c.internal.Keys()
}

// Start constructs every service and runs OnStart hooks, dependencies first.
func (c *Container) Start(ctx context.Context) error {
	if err := c.internal.Start(ctx); err != nil {
		return errStartupFailed(c.Name(), translate(err))
	}
	return nil
}

// Shutdown tears down every constructed service in reverse dependency order
// and reports the outcome of each. It never stops at the first failure.
func (c *Container) Shutdown(ctx context.Context) *ShutdownReport {
	return newShutdownReport(c.internal.Shutdown(ctx))
}

// Stop is Shutdown with the report folded into a single error.
func (c *Container) Stop(ctx context.Context) error {
	if err := c.Shutdown(ctx).Err(); err != nil {
		return errShutdownFailed(c.Name(), err)
	}
	return nil
}

// Run starts the container, blocks until ctx is done or SIGINT/SIGTERM
// arrives, then stops it.
func (c *Container) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	_, report := c.ShutdownOnSignals(ctx)
	if err := report.Err(); err != nil {
		return errShutdownFailed(c.Name(), err)
	}
	return nil
}

// ShutdownOnSignals blocks until one of signals arrives (SIGINT and SIGTERM
// when none are given) or ctx is done, then shuts the container down. The
// returned signal is nil when ctx ended the wait.
func (c *Container) ShutdownOnSignals(ctx context.Context, signals ...os.Signal) (os.Signal, *ShutdownReport) {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, signals...)
	defer signal.Stop(quit)

	var sig os.Signal
	select {
	case <-ctx.Done():
	case sig = <-quit:
		c.config.logger.Info("received signal", "container", c.Name(), "signal", sig.String())
	}

	return sig, c.Shutdown(context.WithoutCancel(ctx))
}
