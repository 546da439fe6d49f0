package keel

import (
	"github.com/danpasecinic/keel/internal/reflect"
)

// Module groups registrations so they can be applied to a container in one
// call. Submodules are applied first, then entries in the order they were
// added.
type Module struct {
	name       string
	entries    []func(c *Container) error
	submodules []*Module
}

func NewModule(name string) *Module {
	return &Module{
		name: name,
	}
}

func (m *Module) Name() string {
	return m.name
}

// ProvideValue adds a value keyed by its dynamic type.
func (m *Module) ProvideValue(value any, opts ...ProviderOption) *Module {
	return m.add(func(c *Container) error {
		cfg := newProviderConfig(opts)
		key := reflect.TypeKeyFromValue(value)
		if cfg.name != "" {
			key += "#" + cfg.name
		}
		return translate(c.internal.RegisterValue(cfg.descriptor(key, nil), value))
	})
}

func (m *Module) Include(submodule *Module) *Module {
	m.submodules = append(m.submodules, submodule)
	return m
}

func (m *Module) add(entry func(c *Container) error) *Module {
	m.entries = append(m.entries, entry)
	return m
}

func (m *Module) apply(c *Container) error {
	for _, sub := range m.submodules {
		if err := sub.apply(c); err != nil {
			return err
		}
	}

	for _, entry := range m.entries {
		if err := entry(c); err != nil {
			return err
		}
	}

	return nil
}

// Apply registers every module in order and stops at the first failure.
// Registrations made before the failure stay in place.
func (c *Container) Apply(modules ...*Module) error {
	for _, m := range modules {
		if err := m.apply(c); err != nil {
			return errModuleApplyFailed(m.name, err)
		}
	}
	return nil
}

func ModuleProvide[T any](m *Module, provider Provider[T], opts ...ProviderOption) *Module {
	return m.add(func(c *Container) error {
		return Provide(c, provider, opts...)
	})
}

func ModuleProvideValue[T any](m *Module, value T, opts ...ProviderOption) *Module {
	return m.add(func(c *Container) error {
		return ProvideValue(c, value, opts...)
	})
}

func ModuleBind[I, T any](m *Module, opts ...ProviderOption) *Module {
	return m.add(func(c *Container) error {
		return Bind[I, T](c, opts...)
	})
}

func ModuleDecorate[T any](m *Module, decorator Decorator[T]) *Module {
	return m.add(func(c *Container) error {
		Decorate(c, decorator)
		return nil
	})
}
