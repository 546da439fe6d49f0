package keel

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"

	"github.com/danpasecinic/keel/internal/container"
)

const DefaultHealthCheckTimeout = container.DefaultHealthCheckTimeout

type Option func(*containerConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *containerConfig) {
		cfg.logger = logger
	}
}

// WithZapLogger routes container logs to a zap logger.
func WithZapLogger(logger *zap.Logger) Option {
	return func(cfg *containerConfig) {
		handler := slogzap.Option{
			Level:  slog.LevelDebug,
			Logger: logger,
		}.NewZapHandler()
		cfg.logger = slog.New(handler)
	}
}

func WithContainerName(name string) Option {
	return func(cfg *containerConfig) {
		cfg.name = name
	}
}

// WithHealthCheckTimeout bounds every single probe. Zero keeps
// DefaultHealthCheckTimeout, a negative value disables the bound.
func WithHealthCheckTimeout(timeout time.Duration) Option {
	return func(cfg *containerConfig) {
		cfg.healthTimeout = timeout
	}
}

func WithHealthCheckGlobalTimeout(timeout time.Duration) Option {
	return func(cfg *containerConfig) {
		cfg.healthGlobalTimeout = timeout
	}
}

// WithHealthCheckParallelism caps concurrent probes. Zero means unbounded.
func WithHealthCheckParallelism(n int) Option {
	return func(cfg *containerConfig) {
		cfg.healthParallelism = n
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *containerConfig) {
		cfg.shutdownTimeout = timeout
	}
}

// WithParallelShutdown stops services of the same dependency level
// concurrently. Levels still run one after another.
func WithParallelShutdown() Option {
	return func(cfg *containerConfig) {
		cfg.parallelShutdown = true
	}
}

func WithResolveObserver(hook ResolveHook) Option {
	return func(cfg *containerConfig) {
		cfg.onResolve = append(cfg.onResolve, hook)
	}
}

func WithProvideObserver(hook ProvideHook) Option {
	return func(cfg *containerConfig) {
		cfg.onProvide = append(cfg.onProvide, hook)
	}
}

func WithStartObserver(hook StartHook) Option {
	return func(cfg *containerConfig) {
		cfg.onStart = append(cfg.onStart, hook)
	}
}

func WithStopObserver(hook StopHook) Option {
	return func(cfg *containerConfig) {
		cfg.onStop = append(cfg.onStop, hook)
	}
}

func WithHealthObserver(hook ProbeHook) Option {
	return func(cfg *containerConfig) {
		cfg.onHealth = append(cfg.onHealth, hook)
	}
}
