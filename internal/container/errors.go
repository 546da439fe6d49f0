package container

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("service not found")
	ErrDuplicate         = errors.New("service already registered")
	ErrCycle             = errors.New("circular dependency detected")
	ErrProvider          = errors.New("provider failed")
	ErrShuttingDown      = errors.New("container is shutting down")
	ErrHook              = errors.New("hook failed")
	ErrTimeout           = errors.New("timeout exceeded")
	ErrAlreadyResolved   = errors.New("service already resolved")
	ErrAlreadyStarted    = errors.New("container already started")
	ErrDecorator         = errors.New("decorator failed")
	ErrMissingDependency = errors.New("missing dependency")
)

// ServiceError is raised for a single identity. Kind is one of the sentinel
// errors above; Path is the resolution path that led to the failure, root
// first.
type ServiceError struct {
	Kind  error
	Key   string
	Path  []string
	Cause error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	if e.Kind == ErrCycle && len(e.Path) > 1 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Path, " -> "))
	} else if e.Key != "" {
		b.WriteString(": ")
		b.WriteString(e.Key)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func (e *ServiceError) Is(target error) bool {
	return e.Kind == target
}

func newServiceError(kind error, key string, cause error) *ServiceError {
	return &ServiceError{
		Kind:  kind,
		Key:   key,
		Cause: cause,
	}
}

// findKind walks a single-wrap chain looking for a ServiceError of kind.
func findKind(err error, kind error) *ServiceError {
	for err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			if se.Kind == kind {
				return se
			}
			err = se.Cause
			continue
		}
		return nil
	}
	return nil
}
