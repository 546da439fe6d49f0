// Package reflect derives service identities from Go types.
package reflect

import (
	"reflect"
	"strconv"
	"sync"
)

var typeKeyCache sync.Map

// TypeKey is the identity of the unnamed service of type T: the import path
// qualified type, with pointer, slice, map and channel shapes spelled out.
func TypeKey[T any]() string {
	return typeKeyFromReflect(typeOf[T]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func typeKeyFromReflect(t reflect.Type) string {
	if cached, ok := typeKeyCache.Load(t); ok {
		return cached.(string)
	}

	key := buildTypeKey(t)
	typeKeyCache.Store(t, key)
	return key
}

func buildTypeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + buildTypeKey(t.Elem())
	case reflect.Slice:
		return "[]" + buildTypeKey(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + buildTypeKey(t.Elem())
	case reflect.Map:
		return "map[" + buildTypeKey(t.Key()) + "]" + buildTypeKey(t.Elem())
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + buildTypeKey(t.Elem())
		case reflect.SendDir:
			return "chan<- " + buildTypeKey(t.Elem())
		default:
			return "chan " + buildTypeKey(t.Elem())
		}
	case reflect.Func:
		return t.String()
	default:
		if t.PkgPath() != "" {
			return t.PkgPath() + "." + t.Name()
		}
		if t.Name() == "" {
			return t.String()
		}
		return t.Name()
	}
}

// TypeKeyFromValue keys v by its dynamic type.
func TypeKeyFromValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	return typeKeyFromReflect(reflect.TypeOf(v))
}

func TypeKeyNamed[T any](name string) string {
	return TypeKey[T]() + "#" + name
}

// TypeName is the short, package-qualified name used in error messages.
func TypeName[T any]() string {
	return typeOf[T]().String()
}

// AssignableTo reports whether a T can be handed out where an I is
// expected.
func AssignableTo[I, T any]() bool {
	return typeOf[T]().AssignableTo(typeOf[I]())
}
