package keel

import (
	"context"

	"github.com/danpasecinic/keel/internal/container"
	"github.com/danpasecinic/keel/internal/reflect"
)

type Decorator[T any] func(ctx context.Context, r Resolver, base T) (T, error)

// Bind registers I as an alias of T. Resolving I resolves T, so both share
// one instance and I depends on T in the graph. T must be assignable to I.
func Bind[I, T any](c *Container, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	interfaceKey := keyFor[I](cfg.name)
	implKey := reflect.TypeKey[T]()

	if !reflect.AssignableTo[I, T]() {
		var zero T
		return errTypeMismatch(reflect.TypeName[I](), zero).WithService(interfaceKey)
	}

	cfg.dependencies = append(cfg.dependencies, implKey)
	desc := cfg.descriptor(interfaceKey, aliasProvider[I](implKey))
	desc.Alias = true
	return translate(c.internal.Register(desc))
}

func BindNamed[I, T any](c *Container, name string, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Bind[I, T](c, opts...)
}

func aliasProvider[I any](implKey string) container.ProviderFunc {
	return func(ctx context.Context, r container.Resolver) (any, error) {
		instance, err := r.Resolve(ctx, implKey)
		if err != nil {
			return nil, err
		}
		if _, ok := instance.(I); !ok {
			return nil, errTypeMismatch(reflect.TypeName[I](), instance)
		}
		return instance, nil
	}
}

// Decorate wraps every instance of T once it is built. Decorators run in the
// order they were added.
func Decorate[T any](c *Container, decorator Decorator[T]) {
	c.internal.AddDecorator(reflect.TypeKey[T](), wrapDecorator(decorator))
}

func DecorateNamed[T any](c *Container, name string, decorator Decorator[T]) {
	c.internal.AddDecorator(reflect.TypeKeyNamed[T](name), wrapDecorator(decorator))
}

func wrapDecorator[T any](decorator Decorator[T]) container.DecoratorFunc {
	return func(ctx context.Context, r container.Resolver, instance any) (any, error) {
		typed, ok := instance.(T)
		if !ok {
			return nil, errDecoratorTypeMismatch(reflect.TypeName[T]())
		}
		return decorator(ctx, r, typed)
	}
}
