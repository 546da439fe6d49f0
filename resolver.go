package keel

import (
	"context"

	"github.com/danpasecinic/keel/internal/reflect"
)

// Resolver is implemented by *Container and by the resolver handed to
// providers, decorators and module entries.
type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

func Invoke[T any](r Resolver) (T, error) {
	return InvokeCtx[T](context.Background(), r)
}

func InvokeCtx[T any](ctx context.Context, r Resolver) (T, error) {
	return invokeKey[T](ctx, r, reflect.TypeKey[T](), reflect.TypeName[T]())
}

func InvokeNamed[T any](r Resolver, name string) (T, error) {
	return InvokeNamedCtx[T](context.Background(), r, name)
}

func InvokeNamedCtx[T any](ctx context.Context, r Resolver, name string) (T, error) {
	return invokeKey[T](ctx, r, reflect.TypeKeyNamed[T](name), reflect.TypeName[T]()+"#"+name)
}

func invokeKey[T any](ctx context.Context, r Resolver, key, name string) (T, error) {
	var zero T

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return zero, translate(err)
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errTypeMismatch(name, instance)
	}

	return typed, nil
}

func MustInvoke[T any](r Resolver) T {
	v, err := Invoke[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

func MustInvokeCtx[T any](ctx context.Context, r Resolver) T {
	v, err := InvokeCtx[T](ctx, r)
	if err != nil {
		panic(err)
	}
	return v
}

func MustInvokeNamed[T any](r Resolver, name string) T {
	v, err := InvokeNamed[T](r, name)
	if err != nil {
		panic(err)
	}
	return v
}

func MustInvokeNamedCtx[T any](ctx context.Context, r Resolver, name string) T {
	v, err := InvokeNamedCtx[T](ctx, r, name)
	if err != nil {
		panic(err)
	}
	return v
}

func TryInvoke[T any](r Resolver) (T, bool) {
	v, err := Invoke[T](r)
	return v, err == nil
}

func TryInvokeNamed[T any](r Resolver, name string) (T, bool) {
	v, err := InvokeNamed[T](r, name)
	return v, err == nil
}

func Has[T any](r Resolver) bool {
	return r.Has(reflect.TypeKey[T]())
}

func HasNamed[T any](r Resolver, name string) bool {
	return r.Has(reflect.TypeKeyNamed[T](name))
}

type Optional[T any] struct {
	value   T
	present bool
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

func (o Optional[T]) Value() T {
	return o.value
}

func (o Optional[T]) Present() bool {
	return o.present
}

func (o Optional[T]) OrElse(defaultValue T) T {
	if o.present {
		return o.value
	}
	return defaultValue
}

func (o Optional[T]) OrElseFunc(fn func() T) T {
	if o.present {
		return o.value
	}
	return fn()
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func InvokeOptional[T any](r Resolver) Optional[T] {
	return InvokeOptionalCtx[T](context.Background(), r)
}

// InvokeOptionalCtx is empty when T is not registered or cannot be built.
func InvokeOptionalCtx[T any](ctx context.Context, r Resolver) Optional[T] {
	return invokeOptional[T](ctx, r, reflect.TypeKey[T]())
}

func InvokeOptionalNamed[T any](r Resolver, name string) Optional[T] {
	return InvokeOptionalNamedCtx[T](context.Background(), r, name)
}

func InvokeOptionalNamedCtx[T any](ctx context.Context, r Resolver, name string) Optional[T] {
	return invokeOptional[T](ctx, r, reflect.TypeKeyNamed[T](name))
}

func invokeOptional[T any](ctx context.Context, r Resolver, key string) Optional[T] {
	if !r.Has(key) {
		return None[T]()
	}

	instance, err := r.Resolve(ctx, key)
	if err != nil {
		return None[T]()
	}

	typed, ok := instance.(T)
	if !ok {
		return None[T]()
	}

	return Some(typed)
}
