package container

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danpasecinic/keel/internal/state"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
	Unknown   HealthStatus = "unknown"
	TimedOut  HealthStatus = "timed_out"
)

type HealthResult struct {
	Key     string
	Status  HealthStatus
	Err     error
	Latency time.Duration
}

// CheckAll probes every Ready service. Probes run concurrently and each one
// gets its own deadline, so a slow or failing probe never hides the others.
func (c *Container) CheckAll(ctx context.Context) map[string]HealthResult {
	if c.healthGlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthGlobalTimeout)
		defer cancel()
	}

	results := make(map[string]HealthResult)
	var mu sync.Mutex

	var g errgroup.Group
	if c.healthParallelism > 0 {
		g.SetLimit(c.healthParallelism)
	}

	for _, key := range c.registry.Keys() {
		e, ok := c.registry.get(key)
		if !ok {
			continue
		}

		st, instance, _ := e.slot.snapshot()
		if st != state.Ready {
			continue
		}

		hook := healthHook(e.desc, instance)
		if hook == nil && e.desc.Alias {
			continue
		}
		if hook == nil {
			mu.Lock()
			results[key] = HealthResult{Key: key, Status: Unknown}
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			result := c.probe(ctx, key, hook)
			mu.Lock()
			results[key] = result
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Check probes a single service. Services that are not Ready report Unknown.
func (c *Container) Check(ctx context.Context, key string) (HealthResult, error) {
	e, ok := c.registry.get(key)
	if !ok {
		return HealthResult{}, newServiceError(ErrNotFound, key, nil)
	}

	st, instance, _ := e.slot.snapshot()
	if st != state.Ready {
		return HealthResult{Key: key, Status: Unknown}, nil
	}

	hook := healthHook(e.desc, instance)
	if hook == nil {
		return HealthResult{Key: key, Status: Unknown}, nil
	}
	return c.probe(ctx, key, hook), nil
}

func (c *Container) probe(ctx context.Context, key string, hook Hook) HealthResult {
	start := time.Now()
	result := HealthResult{Key: key}

	if err := ctx.Err(); err != nil {
		result.Status = TimedOut
		result.Err = newServiceError(ErrTimeout, key, err)
		c.callObservers(c.onHealth, key, 0, result.Err)
		return result
	}

	var pctx context.Context
	var cancel context.CancelFunc
	if c.healthTimeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
	} else {
		pctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runHook(pctx, hook)
	}()

	select {
	case err := <-done:
		result.Latency = time.Since(start)
		switch {
		case err == nil:
			result.Status = Healthy
		case pctx.Err() != nil:
			result.Status = TimedOut
			result.Err = newServiceError(ErrTimeout, key, err)
		default:
			result.Status = Unhealthy
			result.Err = newServiceError(ErrHook, key, err)
		}
	case <-pctx.Done():
		result.Latency = time.Since(start)
		result.Status = TimedOut
		result.Err = newServiceError(ErrTimeout, key, pctx.Err())
	}

	c.callObservers(c.onHealth, key, result.Latency, result.Err)
	return result
}
