package container

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/danpasecinic/keel/internal/graph"
	"github.com/danpasecinic/keel/internal/state"
)

const DefaultHealthCheckTimeout = 5 * time.Second

type ObserveFunc func(key string, duration time.Duration, err error)

type Container struct {
	mu       sync.RWMutex
	state    state.Container
	started  bool
	inflight sync.WaitGroup

	registry *Registry
	graph    *graph.Graph
	flights  singleflight.Group
	building builders
	logger   *slog.Logger

	decorators   map[string][]DecoratorFunc
	decoratorsMu sync.RWMutex

	healthTimeout       time.Duration
	healthGlobalTimeout time.Duration
	healthParallelism   int
	shutdownTimeout     time.Duration
	parallelShutdown    bool

	onResolve []ObserveFunc
	onProvide []func(key string)
	onStart   []ObserveFunc
	onStop    []ObserveFunc
	onHealth  []ObserveFunc
}

type Config struct {
	Logger *slog.Logger

	HealthCheckTimeout       time.Duration
	HealthCheckGlobalTimeout time.Duration
	HealthCheckParallelism   int
	ShutdownTimeout          time.Duration
	ParallelShutdown         bool

	OnResolve []ObserveFunc
	OnProvide []func(key string)
	OnStart   []ObserveFunc
	OnStop    []ObserveFunc
	OnHealth  []ObserveFunc
}

func New(cfg *Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}

	return &Container{
		registry:            NewRegistry(),
		graph:               graph.New(),
		logger:              logger,
		decorators:          make(map[string][]DecoratorFunc),
		healthTimeout:       healthTimeout,
		healthGlobalTimeout: cfg.HealthCheckGlobalTimeout,
		healthParallelism:   cfg.HealthCheckParallelism,
		shutdownTimeout:     cfg.ShutdownTimeout,
		parallelShutdown:    cfg.ParallelShutdown,
		onResolve:           cfg.OnResolve,
		onProvide:           cfg.OnProvide,
		onStart:             cfg.OnStart,
		onStop:              cfg.OnStop,
		onHealth:            cfg.OnHealth,
	}
}

// Register adds a provider-backed descriptor. Declared dependencies become
// graph edges right away, so a declared cycle is rejected here.
func (c *Container) Register(desc *Descriptor) error {
	return c.register(desc, func() error { return c.registry.Register(desc) })
}

func (c *Container) RegisterValue(desc *Descriptor, value any) error {
	return c.register(desc, func() error { return c.registry.RegisterValue(desc, value) })
}

func (c *Container) register(desc *Descriptor, add func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != state.Open {
		return newServiceError(ErrShuttingDown, desc.Key, nil)
	}

	if c.registry.Has(desc.Key) {
		return newServiceError(ErrDuplicate, desc.Key, nil)
	}

	if err := c.graph.AddEdges(desc.Key, desc.Dependencies); err != nil {
		return cycleError(desc.Key, err)
	}

	if err := add(); err != nil {
		return err
	}

	c.logger.Debug("service registered", "service", desc.Key)
	for _, hook := range c.onProvide {
		hook(desc.Key)
	}
	return nil
}

func (c *Container) Replace(desc *Descriptor, value any, isValue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != state.Open {
		return newServiceError(ErrShuttingDown, desc.Key, nil)
	}

	relink := func() error {
		if err := c.graph.ReplaceOutEdges(desc.Key, desc.Dependencies); err != nil {
			return cycleError(desc.Key, err)
		}
		return nil
	}
	if err := c.registry.Replace(desc, value, isValue, relink); err != nil {
		return err
	}

	c.logger.Debug("service replaced", "service", desc.Key)
	return nil
}

func cycleError(key string, err error) *ServiceError {
	se := newServiceError(ErrCycle, key, nil)
	var cycle *graph.CycleError
	if errors.As(err, &cycle) {
		se.Path = cycle.Path
	}
	return se
}

func (c *Container) Has(key string) bool {
	return c.registry.Has(key)
}

func (c *Container) Keys() []string {
	return c.registry.Keys()
}

func (c *Container) Size() int {
	return c.registry.Size()
}

func (c *Container) Lookup(key string) (*Descriptor, error) {
	return c.registry.Lookup(key)
}

// Instance returns the cached instance of key when it is Ready.
func (c *Container) Instance(key string) (any, bool) {
	e, ok := c.registry.get(key)
	if !ok {
		return nil, false
	}

	st, instance, _ := e.slot.snapshot()
	if st != state.Ready {
		return nil, false
	}
	return instance, true
}

func (c *Container) StateOf(key string) (state.State, bool) {
	e, ok := c.registry.get(key)
	if !ok {
		return state.Registered, false
	}

	st, _, _ := e.slot.snapshot()
	return st, true
}

func (c *Container) State() state.Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Graph returns a copy of the dependency graph.
func (c *Container) Graph() *graph.Graph {
	return c.graph.Clone()
}

// Validate reports declared dependencies that have no provider.
func (c *Container) Validate() error {
	var err error
	for _, key := range c.graph.Nodes() {
		if c.registry.Has(key) {
			continue
		}
		for _, dependent := range c.graph.Dependents(key) {
			err = multierr.Append(err, &ServiceError{
				Kind: ErrMissingDependency,
				Key:  key,
				Path: []string{dependent, key},
			})
		}
	}
	return err
}

type ServiceSnapshot struct {
	Key           string
	State         state.State
	ConstructedAt time.Time
	Value         bool
	Dependencies  []string
	Dependents    []string
}

// Snapshot describes every registered identity in registration order.
func (c *Container) Snapshot() ([]ServiceSnapshot, []graph.Edge) {
	keys := c.registry.Keys()
	services := make([]ServiceSnapshot, 0, len(keys))

	for _, key := range keys {
		e, ok := c.registry.get(key)
		if !ok {
			continue
		}

		st, _, at := e.slot.snapshot()
		services = append(services, ServiceSnapshot{
			Key:           key,
			State:         st,
			ConstructedAt: at,
			Value:         e.value,
			Dependencies:  c.graph.Dependencies(key),
			Dependents:    c.graph.Dependents(key),
		})
	}

	return services, c.graph.Edges()
}

func (c *Container) callObservers(hooks []ObserveFunc, key string, duration time.Duration, err error) {
	for _, hook := range hooks {
		hook(key, duration, err)
	}
}
