package container

import (
	"context"
	"fmt"
)

type shutdownerWithContextAndError interface {
	Shutdown(ctx context.Context) error
}

type shutdownerWithError interface {
	Shutdown() error
}

type shutdownerWithContext interface {
	Shutdown(ctx context.Context)
}

type shutdowner interface {
	Shutdown()
}

type healthcheckerWithContext interface {
	HealthCheck(ctx context.Context) error
}

type healthchecker interface {
	HealthCheck() error
}

// shutdownHooks returns the teardown hooks for an instance: explicit hooks in
// reverse registration order, otherwise whatever Shutdown method the instance
// exposes.
func shutdownHooks(desc *Descriptor, instance any) []Hook {
	if len(desc.OnStop) > 0 {
		hooks := make([]Hook, 0, len(desc.OnStop))
		for i := len(desc.OnStop) - 1; i >= 0; i-- {
			hooks = append(hooks, desc.OnStop[i])
		}
		return hooks
	}
	if desc.Alias {
		return nil
	}

	switch s := instance.(type) {
	case shutdownerWithContextAndError:
		return []Hook{s.Shutdown}
	case shutdownerWithError:
		return []Hook{func(context.Context) error { return s.Shutdown() }}
	case shutdownerWithContext:
		return []Hook{func(ctx context.Context) error { s.Shutdown(ctx); return nil }}
	case shutdowner:
		return []Hook{func(context.Context) error { s.Shutdown(); return nil }}
	}
	return nil
}

func healthHook(desc *Descriptor, instance any) Hook {
	if desc.HealthCheck != nil {
		return desc.HealthCheck
	}
	if desc.Alias {
		return nil
	}

	switch h := instance.(type) {
	case healthcheckerWithContext:
		return h.HealthCheck
	case healthchecker:
		return func(context.Context) error { return h.HealthCheck() }
	}
	return nil
}

func runHook(ctx context.Context, hook Hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return hook(ctx)
}
