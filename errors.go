package keel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danpasecinic/keel/internal/container"
)

type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeServiceNotFound
	ErrCodeCircularDependency
	ErrCodeDuplicateService
	ErrCodeResolutionFailed
	ErrCodeProviderFailed
	ErrCodeContainerShuttingDown
	ErrCodeHookFailed
	ErrCodeStartupFailed
	ErrCodeShutdownFailed
	ErrCodeHealthCheckFailed
	ErrCodeValidationFailed
	ErrCodeTimeout
	ErrCodeContainerAlreadyStarted
	ErrCodeServiceAlreadyResolved
	ErrCodeModuleApplyFailed
	ErrCodeDecoratorFailed
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:                 "UNKNOWN",
	ErrCodeServiceNotFound:         "SERVICE_NOT_FOUND",
	ErrCodeCircularDependency:      "CIRCULAR_DEPENDENCY",
	ErrCodeDuplicateService:        "DUPLICATE_SERVICE",
	ErrCodeResolutionFailed:        "RESOLUTION_FAILED",
	ErrCodeProviderFailed:          "PROVIDER_FAILED",
	ErrCodeContainerShuttingDown:   "CONTAINER_SHUTTING_DOWN",
	ErrCodeHookFailed:              "HOOK_FAILED",
	ErrCodeStartupFailed:           "STARTUP_FAILED",
	ErrCodeShutdownFailed:          "SHUTDOWN_FAILED",
	ErrCodeHealthCheckFailed:       "HEALTH_CHECK_FAILED",
	ErrCodeValidationFailed:        "VALIDATION_FAILED",
	ErrCodeTimeout:                 "TIMEOUT",
	ErrCodeContainerAlreadyStarted: "CONTAINER_ALREADY_STARTED",
	ErrCodeServiceAlreadyResolved:  "SERVICE_ALREADY_RESOLVED",
	ErrCodeModuleApplyFailed:       "MODULE_APPLY_FAILED",
	ErrCodeDecoratorFailed:         "DECORATOR_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", c)
}

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrNotFound       = &Error{Code: ErrCodeServiceNotFound, Message: "service not found"}
	ErrDuplicate      = &Error{Code: ErrCodeDuplicateService, Message: "service already registered"}
	ErrCycle          = &Error{Code: ErrCodeCircularDependency, Message: "circular dependency detected"}
	ErrProviderFailed = &Error{Code: ErrCodeProviderFailed, Message: "provider failed"}
	ErrShuttingDown   = &Error{Code: ErrCodeContainerShuttingDown, Message: "container is shutting down"}
	ErrHookFailed     = &Error{Code: ErrCodeHookFailed, Message: "hook failed"}
)

type Error struct {
	Code    ErrorCode
	Message string
	Service string
	Cause   error
	Stack   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Code))

	if e.Service != "" {
		b.WriteString(fmt.Sprintf(" service=%q:", e.Service))
	}

	sep := " "
	if e.Message != "" {
		b.WriteString(sep)
		b.WriteString(e.Message)
		sep = ": "
	}

	if e.Cause != nil {
		b.WriteString(sep)
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) WithService(service string) *Error {
	e.Service = service
	return e
}

func (e *Error) WithStack(stack []string) *Error {
	e.Stack = stack
	return e
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

var kindCodes = map[error]ErrorCode{
	container.ErrNotFound:          ErrCodeServiceNotFound,
	container.ErrDuplicate:         ErrCodeDuplicateService,
	container.ErrCycle:             ErrCodeCircularDependency,
	container.ErrProvider:          ErrCodeProviderFailed,
	container.ErrShuttingDown:      ErrCodeContainerShuttingDown,
	container.ErrHook:              ErrCodeHookFailed,
	container.ErrTimeout:           ErrCodeTimeout,
	container.ErrAlreadyResolved:   ErrCodeServiceAlreadyResolved,
	container.ErrAlreadyStarted:    ErrCodeContainerAlreadyStarted,
	container.ErrDecorator:         ErrCodeDecoratorFailed,
	container.ErrMissingDependency: ErrCodeServiceNotFound,
}

// translate turns the outermost internal error into an *Error. The internal
// error stays in the chain, so nested resolutions keep their kind.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if e, ok := err.(*Error); ok {
		return e
	}

	var se *container.ServiceError
	if errors.As(err, &se) {
		code, ok := kindCodes[se.Kind]
		if !ok {
			code = ErrCodeUnknown
		}
		return &Error{
			Code:    code,
			Service: se.Key,
			Cause:   err,
			Stack:   se.Path,
		}
	}

	if code, ok := kindCodes[err]; ok {
		return &Error{Code: code, Cause: err}
	}

	return newError(ErrCodeUnknown, "", err)
}

func errTypeMismatch(serviceType string, instance any) *Error {
	return newError(
		ErrCodeResolutionFailed,
		fmt.Sprintf("instance of type %T does not satisfy %s", instance, serviceType),
		nil,
	).WithService(serviceType)
}

func errStartupFailed(name string, cause error) *Error {
	return newError(
		ErrCodeStartupFailed,
		fmt.Sprintf("failed to start %s", name),
		cause,
	)
}

func errShutdownFailed(name string, cause error) *Error {
	return newError(
		ErrCodeShutdownFailed,
		fmt.Sprintf("failed to stop %s", name),
		cause,
	)
}

func errValidationFailed(cause error) *Error {
	return newError(ErrCodeValidationFailed, "container validation failed", cause)
}

func errHealthCheckFailed(service string, cause error) *Error {
	return newError(
		ErrCodeHealthCheckFailed,
		"health check failed",
		cause,
	).WithService(service)
}

func errModuleApplyFailed(moduleName string, cause error) *Error {
	return newError(
		ErrCodeModuleApplyFailed,
		"failed to apply module "+moduleName,
		cause,
	)
}

func errDecoratorTypeMismatch(typeName string) *Error {
	return newError(
		ErrCodeDecoratorFailed,
		"decorator type mismatch for "+typeName,
		nil,
	)
}

func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeServiceNotFound)
}

func IsCircularDependency(err error) bool {
	return hasCode(err, ErrCodeCircularDependency)
}

func IsDuplicateService(err error) bool {
	return hasCode(err, ErrCodeDuplicateService)
}

func IsResolutionFailed(err error) bool {
	return hasCode(err, ErrCodeResolutionFailed)
}

func IsProviderFailed(err error) bool {
	return hasCode(err, ErrCodeProviderFailed)
}

func IsShuttingDown(err error) bool {
	return hasCode(err, ErrCodeContainerShuttingDown)
}

func IsHookFailed(err error) bool {
	return hasCode(err, ErrCodeHookFailed)
}

func IsStartupFailed(err error) bool {
	return hasCode(err, ErrCodeStartupFailed)
}

func IsShutdownFailed(err error) bool {
	return hasCode(err, ErrCodeShutdownFailed)
}

func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}
