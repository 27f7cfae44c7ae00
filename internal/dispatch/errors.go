package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Error kinds raised by the dispatch core.
const (
	KindUnknownService          = "UnknownService"
	KindMissingRequiredArgument = "MissingRequiredArgument"
	KindUnknownArgument         = "UnknownArgument"
	KindInvalidArgument         = "InvalidArgument"

	// KindGenericInternalError is only ever produced by the Processor when
	// catch-all is enabled. It carries no details.
	KindGenericInternalError = "GenericInternalError"
)

// Errors for processor and service construction.
var (
	ErrNoRegistries      = errors.New("at least one registry is required")
	ErrDuplicateRegistry = errors.New("duplicate registry name")
	ErrInvalidParams     = errors.New("invalid service parameters")
	ErrNilFunc           = errors.New("service func cannot be nil")
	ErrEmptyServiceName  = errors.New("service name cannot be empty")
)

// DomainError is a recognized error that short-circuits a request with a
// structured {error, details} response instead of failing it.
//
// Applications define their own domain errors either by calling NewError or
// by implementing this interface.
type DomainError interface {
	error
	Kind() string
	Details() map[string]any
}

// Error is the base domain error.
type Error struct {
	kind    string
	details map[string]any
}

// NewError creates a domain error of the given kind. details may be nil.
func NewError(kind string, details map[string]any) *Error {
	d := make(map[string]any, len(details))
	for k, v := range details {
		d[k] = v
	}
	return &Error{kind: kind, details: d}
}

// Kind returns the error category.
func (e *Error) Kind() string { return e.kind }

// Details returns a copy of the diagnostic data.
func (e *Error) Details() map[string]any {
	d := make(map[string]any, len(e.details))
	for k, v := range e.details {
		d[k] = v
	}
	return d
}

func (e *Error) Error() string {
	if len(e.details) == 0 {
		return e.kind
	}
	keys := make([]string, 0, len(e.details))
	for k := range e.details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.details[k]))
	}
	return e.kind + " (" + strings.Join(parts, ", ") + ")"
}

// UnknownService reports a lookup miss for a non-default service name.
func UnknownService(name string) *Error {
	return NewError(KindUnknownService, map[string]any{"service": name})
}

// MissingRequiredArgument reports a required parameter absent from args.
func MissingRequiredArgument(arg string) *Error {
	return NewError(KindMissingRequiredArgument, map[string]any{"arg": arg})
}

// UnknownArgument reports an argument the service does not declare.
func UnknownArgument(arg string) *Error {
	return NewError(KindUnknownArgument, map[string]any{"arg": arg})
}

// InvalidArgument reports an argument that could not be decoded or failed
// validation. key is "reason" for decode failures and "rule" for validation.
func InvalidArgument(arg, key, value string) *Error {
	return NewError(KindInvalidArgument, map[string]any{"arg": arg, key: value})
}

// IsKind reports whether err carries a domain error of the given kind.
func IsKind(err error, kind string) bool {
	de, ok := asDomainError(err)
	return ok && de.Kind() == kind
}

// asDomainError finds the domain error in err's chain. A nil pointer or an
// empty kind does not count: neither can be reported to the caller.
func asDomainError(err error) (DomainError, bool) {
	var de DomainError
	if !errors.As(err, &de) || isNilValue(de) {
		return nil, false
	}
	if de.Kind() == "" {
		return nil, false
	}
	return de, true
}

func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// PanicError wraps a value recovered from a panicking service.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("service panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StageError annotates a non-domain error with the stage that produced it.
type StageError struct {
	Registry string
	Service  string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("registry %q service %q: %v", e.Registry, displayName(e.Service), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// displayName renders the empty service name as the default service.
func displayName(service string) string {
	if service == "" {
		return "<default>"
	}
	return service
}
