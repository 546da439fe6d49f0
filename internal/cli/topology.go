package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danpasecinic/keel"
)

// Topology describes a simulated application: every service is a named
// node whose hooks sleep and optionally fail, so start and shutdown
// behaviour can be rehearsed without the real dependencies.
type Topology struct {
	Name     string        `yaml:"name"`
	Services []ServiceSpec `yaml:"services"`
}

type ServiceSpec struct {
	Name       string        `yaml:"name"`
	DependsOn  []string      `yaml:"depends_on"`
	StartDelay time.Duration `yaml:"start_delay"`
	StopDelay  time.Duration `yaml:"stop_delay"`
	StartError string        `yaml:"start_error"`
	StopError  string        `yaml:"stop_error"`

	// Health is one of healthy, unhealthy or hang. Empty means no probe.
	Health string `yaml:"health"`
}

// Node is the instance built for every service of a topology.
type Node struct {
	Name string
	Deps []*Node
}

func LoadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var t Topology
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	for i, s := range t.Services {
		if s.Name == "" {
			return nil, fmt.Errorf("service #%d has no name", i+1)
		}
		switch s.Health {
		case "", "healthy", "unhealthy", "hang":
		default:
			return nil, fmt.Errorf("service %s: unknown health mode %q", s.Name, s.Health)
		}
	}

	return &t, nil
}

func NodeKey(name string) string {
	return keel.KeyNamed[*Node](name)
}

// Build registers every service of t into a new container.
func (t *Topology) Build(opts ...keel.Option) (*keel.Container, error) {
	if t.Name != "" {
		opts = append([]keel.Option{keel.WithContainerName(t.Name)}, opts...)
	}
	c := keel.New(opts...)

	for _, spec := range t.Services {
		if err := keel.ProvideNamed(c, spec.Name, spec.provider(), spec.options()...); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (s ServiceSpec) provider() keel.Provider[*Node] {
	return func(ctx context.Context, r keel.Resolver) (*Node, error) {
		n := &Node{Name: s.Name}
		for _, dep := range s.DependsOn {
			d, err := keel.InvokeNamedCtx[*Node](ctx, r, dep)
			if err != nil {
				return nil, err
			}
			n.Deps = append(n.Deps, d)
		}
		return n, nil
	}
}

func (s ServiceSpec) options() []keel.ProviderOption {
	deps := make([]string, 0, len(s.DependsOn))
	for _, dep := range s.DependsOn {
		deps = append(deps, NodeKey(dep))
	}

	opts := []keel.ProviderOption{
		keel.WithDependencies(deps...),
		keel.WithOnStart(simulate(s.StartDelay, s.StartError)),
		keel.WithOnStop(simulate(s.StopDelay, s.StopError)),
	}

	switch s.Health {
	case "healthy":
		opts = append(opts, keel.WithHealthCheck(func(ctx context.Context) error { return nil }))
	case "unhealthy":
		opts = append(opts, keel.WithHealthCheck(func(ctx context.Context) error {
			return errors.New(s.Name + " reports unhealthy")
		}))
	case "hang":
		opts = append(opts, keel.WithHealthCheck(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	}

	return opts
}

func simulate(delay time.Duration, failure string) keel.Hook {
	return func(ctx context.Context) error {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if failure != "" {
			return errors.New(failure)
		}
		return nil
	}
}
