package container

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/danpasecinic/keel/internal/state"
)

// ShutdownReport lists every service visited during shutdown, in visit order.
// A nil entry in Errors means the service stopped cleanly.
type ShutdownReport struct {
	Order    []string
	Errors   map[string]error
	Duration time.Duration
}

func newShutdownReport() *ShutdownReport {
	return &ShutdownReport{
		Errors: make(map[string]error),
	}
}

func (r *ShutdownReport) record(key string, err error) {
	r.Order = append(r.Order, key)
	r.Errors[key] = err
}

func (r *ShutdownReport) Succeeded() bool {
	for _, err := range r.Errors {
		if err != nil {
			return false
		}
	}
	return true
}

// Err folds every failure into one error, in visit order.
func (r *ShutdownReport) Err() error {
	var err error
	for _, key := range r.Order {
		err = multierr.Append(err, r.Errors[key])
	}
	return err
}

// Start constructs every registered service, then runs OnStart hooks in
// dependency order. Services constructed later run their hooks on first use.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != state.Open {
		c.mu.Unlock()
		return newServiceError(ErrShuttingDown, "", nil)
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	for _, key := range c.registry.Keys() {
		if _, err := c.Resolve(ctx, key); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	for key := range c.graph.TopologicalOrder() {
		e, ok := c.registry.get(key)
		if !ok {
			continue
		}
		if err := c.runStartHooks(ctx, key, e); err != nil {
			return err
		}
	}

	return nil
}

func (c *Container) runStartHooks(ctx context.Context, key string, e *entry) error {
	s := e.slot
	s.mu.Lock()
	if s.started || s.state != state.Ready {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	return c.startHooks(ctx, key, e)
}

func (c *Container) startHooks(ctx context.Context, key string, e *entry) error {
	start := time.Now()
	var startErr error
	for _, hook := range e.desc.OnStart {
		c.logger.Debug("running OnStart hook", "service", key)
		if err := runHook(ctx, hook); err != nil {
			startErr = newServiceError(ErrHook, key, err)
			break
		}
	}

	c.callObservers(c.onStart, key, time.Since(start), startErr)
	return startErr
}

// Shutdown stops accepting new resolutions, waits for in-flight ones and
// tears down every Ready service, dependents before their dependencies.
// Failures are collected in the report and never stop the sequence. The
// shutdown timeout covers the wait for in-flight work too; services left
// unstopped when it expires are reported as timed out. Calling Shutdown
// again returns an empty report.
func (c *Container) Shutdown(ctx context.Context) *ShutdownReport {
	start := time.Now()
	report := newShutdownReport()

	c.mu.Lock()
	if c.state != state.Open {
		c.mu.Unlock()
		return report
	}
	c.state = state.Draining
	c.mu.Unlock()

	if c.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.shutdownTimeout)
		defer cancel()
	}

	c.logger.Debug("waiting for in-flight resolutions")
	drained := c.drain(ctx)
	if !drained {
		c.logger.Warn("shutdown deadline reached with resolutions in flight", "error", ctx.Err())
	}

	if c.parallelShutdown {
		c.shutdownParallel(ctx, report)
	} else {
		c.shutdownSequential(ctx, report)
	}

	if !drained {
		c.recordStranded(ctx, report)
	}

	c.mu.Lock()
	c.state = state.Closed
	c.mu.Unlock()

	report.Duration = time.Since(start)
	c.logger.Debug("container shut down", "services", len(report.Order), "duration", report.Duration)
	return report
}

// drain waits for in-flight resolutions and reports whether they all
// finished before ctx ended.
func (c *Container) drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// recordStranded reports services whose construction was still running when
// the deadline passed. They are never stopped.
func (c *Container) recordStranded(ctx context.Context, report *ShutdownReport) {
	for _, key := range c.registry.Keys() {
		e, ok := c.registry.get(key)
		if !ok {
			continue
		}
		if st, _, _ := e.slot.snapshot(); st != state.Constructing {
			continue
		}

		err := newServiceError(ErrTimeout, key, ctx.Err())
		c.logger.Warn("service construction outlived shutdown", "service", key)
		report.record(key, err)
	}
}

func (c *Container) shutdownSequential(ctx context.Context, report *ShutdownReport) {
	for key := range c.graph.ReverseTopologicalOrder() {
		e, ok := c.readyEntry(key)
		if !ok {
			continue
		}
		report.record(key, c.stopService(ctx, key, e))
	}
}

func (c *Container) shutdownParallel(ctx context.Context, report *ShutdownReport) {
	var mu sync.Mutex

	for _, group := range c.graph.ReverseLevels() {
		var g errgroup.Group
		for _, key := range group.Nodes {
			e, ok := c.readyEntry(key)
			if !ok {
				continue
			}

			g.Go(func() error {
				err := c.stopService(ctx, key, e)
				mu.Lock()
				report.record(key, err)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (c *Container) readyEntry(key string) (*entry, bool) {
	e, ok := c.registry.get(key)
	if !ok {
		return nil, false
	}

	st, _, _ := e.slot.snapshot()
	return e, st == state.Ready
}

// stopService moves key through ShuttingDown to Shutdown whatever its hooks
// return.
func (c *Container) stopService(ctx context.Context, key string, e *entry) error {
	s := e.slot
	s.mu.Lock()
	if !s.transition(state.ShuttingDown) {
		s.mu.Unlock()
		return nil
	}
	instance := s.instance
	s.mu.Unlock()

	start := time.Now()
	var stopErr error

	if err := ctx.Err(); err != nil {
		stopErr = newServiceError(ErrTimeout, key, err)
	} else {
		var hookErr error
		for _, hook := range shutdownHooks(e.desc, instance) {
			c.logger.Debug("running OnStop hook", "service", key)
			hookErr = multierr.Append(hookErr, runHook(ctx, hook))
		}
		if hookErr != nil {
			stopErr = newServiceError(ErrHook, key, hookErr)
		}
	}

	s.mu.Lock()
	s.transition(state.Shutdown)
	s.mu.Unlock()

	if stopErr != nil {
		c.logger.Warn("service shutdown failed", "service", key, "error", stopErr)
	}
	c.callObservers(c.onStop, key, time.Since(start), stopErr)
	return stopErr
}
