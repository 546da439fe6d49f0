package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danpasecinic/keel/internal/state"
)

type frameKey struct{}

// frame is one step of the resolution path. Providers receive a context
// carrying the frame of the identity they build.
type frame struct {
	key    string
	parent *frame
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

func (f *frame) contains(key string) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.key == key {
			return true
		}
	}
	return false
}

// path returns root ... f, key.
func (f *frame) path(key string) []string {
	var rev []string
	for cur := f; cur != nil; cur = cur.parent {
		rev = append(rev, cur.key)
	}

	path := make([]string, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, key)
}

// boundResolver is handed to providers. Calls made with a context that lost
// the frame still count as nested in the identity being built.
type boundResolver struct {
	container *Container
	frame     *frame
}

func (r *boundResolver) Resolve(ctx context.Context, key string) (any, error) {
	if frameFrom(ctx) == nil {
		ctx = context.WithValue(ctx, frameKey{}, r.frame)
	}
	return r.container.Resolve(ctx, key)
}

func (r *boundResolver) Has(key string) bool {
	return r.container.Has(key)
}

// Resolve returns the singleton for key, constructing it on first use.
// When called from inside a provider, the edge parent -> key is recorded
// before waiting on key's construction.
func (c *Container) Resolve(ctx context.Context, key string) (any, error) {
	start := time.Now()
	instance, err := c.resolve(ctx, key)
	c.callObservers(c.onResolve, key, time.Since(start), err)
	return instance, err
}

func (c *Container) resolve(ctx context.Context, key string) (any, error) {
	parent := frameFrom(ctx)
	if parent == nil {
		parent = c.building.current()
	}

	if !c.admit(parent != nil) {
		return nil, newServiceError(ErrShuttingDown, key, nil)
	}
	defer c.inflight.Done()

	e, exists := c.registry.get(key)
	if !exists {
		err := newServiceError(ErrNotFound, key, nil)
		if parent != nil {
			err.Path = parent.path(key)
		}
		return nil, err
	}

	if parent != nil {
		if parent.contains(key) {
			return nil, &ServiceError{Kind: ErrCycle, Key: key, Path: parent.path(key)}
		}
		if err := c.graph.AddEdge(parent.key, key); err != nil {
			return nil, cycleError(key, err)
		}
	}

	if instance, ok := e.slot.ready(); ok {
		return instance, nil
	}

	instance, err, _ := c.flights.Do(key, func() (any, error) {
		return c.construct(ctx, parent, key, e)
	})
	if err != nil {
		return nil, err
	}

	e.slot.mu.Lock()
	e.slot.served = true
	e.slot.mu.Unlock()
	return instance, nil
}

// admit counts a resolution as in flight. Once shutdown began only nested
// resolutions of already admitted work get through.
func (c *Container) admit(nested bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.state {
	case state.Open:
	case state.Draining:
		if !nested {
			return false
		}
	default:
		return false
	}

	c.inflight.Add(1)
	return true
}

func (c *Container) construct(ctx context.Context, parent *frame, key string, e *entry) (any, error) {
	s := e.slot

	s.mu.Lock()
	if s.state == state.Ready {
		instance, decorated := s.instance, s.decorated
		s.mu.Unlock()
		if decorated {
			return instance, nil
		}
		return c.decorateValue(ctx, parent, key, e, instance)
	}
	// Only a slot being torn down refuses to construct.
	if !s.transition(state.Constructing) {
		s.mu.Unlock()
		return nil, newServiceError(ErrShuttingDown, key, nil)
	}
	s.mu.Unlock()

	c.logger.Debug("constructing service", "service", key)

	f := &frame{key: key, parent: parent}
	childCtx := context.WithValue(ctx, frameKey{}, f)

	instance, err := c.build(childCtx, f, key, e.desc)
	if err != nil {
		s.rollback()
		c.logger.Debug("service construction failed", "service", key, "error", err)
		return nil, providerError(key, f, err)
	}

	started := c.isStarted()

	s.mu.Lock()
	s.instance = instance
	s.decorated = true
	s.constructedAt = time.Now()
	s.started = started
	s.mu.Unlock()

	// Past Start the hooks run before the instance is published; a failed
	// hook leaves the slot Registered.
	if started {
		if err := c.startHooks(ctx, key, e); err != nil {
			s.rollback()
			return nil, err
		}
	}

	s.mu.Lock()
	s.transition(state.Ready)
	s.mu.Unlock()

	c.logger.Debug("service ready", "service", key)
	return instance, nil
}

// rollback returns a failed construction to Registered.
func (s *slot) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transition(state.Registered)
	s.instance = nil
	s.decorated = false
	s.started = false
	s.constructedAt = time.Time{}
}

// decorateValue runs the decorators of a stored value on its first
// resolution.
func (c *Container) decorateValue(ctx context.Context, parent *frame, key string, e *entry, instance any) (any, error) {
	f := &frame{key: key, parent: parent}
	decorated, err := c.redecorate(context.WithValue(ctx, frameKey{}, f), f, key, instance)
	if err != nil {
		return nil, providerError(key, f, err)
	}

	e.slot.mu.Lock()
	e.slot.instance = decorated
	e.slot.decorated = true
	e.slot.mu.Unlock()
	return decorated, nil
}

func (c *Container) build(ctx context.Context, f *frame, key string, desc *Descriptor) (any, error) {
	defer c.building.enter(f)()

	instance, err := c.invokeProvider(ctx, f, desc)
	if err != nil {
		return nil, err
	}
	return c.applyDecorators(ctx, f, key, instance)
}

func (c *Container) redecorate(ctx context.Context, f *frame, key string, instance any) (any, error) {
	defer c.building.enter(f)()
	return c.applyDecorators(ctx, f, key, instance)
}

func (c *Container) invokeProvider(ctx context.Context, f *frame, desc *Descriptor) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	return desc.Provider(ctx, &boundResolver{container: c, frame: f})
}

// providerError wraps a construction failure. Cycles found further down the
// path keep their kind so callers see the loop, not the provider.
func providerError(key string, f *frame, err error) error {
	if cycle := findKind(err, ErrCycle); cycle != nil {
		return cycle
	}

	var se *ServiceError
	if errors.As(err, &se) && se.Kind == ErrDecorator && se.Key == key {
		se.Path = f.parent.path(key)
		return se
	}

	se = newServiceError(ErrProvider, key, err)
	se.Path = f.parent.path(key)
	return se
}

func (c *Container) isStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}
