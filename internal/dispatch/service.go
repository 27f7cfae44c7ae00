package dispatch

import (
	"context"
	"fmt"
	"sort"
)

// Func is the callable wrapped by a Service. args has already been bound:
// every required parameter is present, no undeclared key is, and omitted
// optional parameters carry their defaults.
type Func func(ctx context.Context, dc *Context, args Args) (any, error)

// Param declares one bindable argument of a service.
type Param struct {
	Name     string
	Optional bool
	Default  any
}

// Required declares a parameter without a default.
func Required(name string) Param {
	return Param{Name: name}
}

// Optional declares a parameter that falls back to def when omitted.
func Optional(name string, def any) Param {
	return Param{Name: name, Optional: true, Default: def}
}

// Spec is the registration-time description of a service: its callable and
// declared parameters.
type Spec struct {
	fn     Func
	params []Param
	err    error
}

// NewSpec describes an untyped service.
func NewSpec(fn Func, params ...Param) Spec {
	return Spec{fn: fn, params: params}
}

// Service validates arguments against declared parameters and invokes its
// callable. It is immutable once constructed.
type Service struct {
	fn       Func
	params   []Param
	required []string
	allowed  map[string]Param
}

// NewService builds a Service from spec.
func NewService(spec Spec) (*Service, error) {
	if spec.err != nil {
		return nil, spec.err
	}
	if spec.fn == nil {
		return nil, ErrNilFunc
	}

	s := &Service{
		fn:      spec.fn,
		params:  make([]Param, len(spec.params)),
		allowed: make(map[string]Param, len(spec.params)),
	}
	copy(s.params, spec.params)

	for _, p := range spec.params {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: empty parameter name", ErrInvalidParams)
		}
		if _, dup := s.allowed[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidParams, p.Name)
		}
		s.allowed[p.Name] = p
		if !p.Optional {
			s.required = append(s.required, p.Name)
		}
	}
	return s, nil
}

// Params returns the declared parameters in declaration order.
func (s *Service) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	return out
}

// Required returns the names of parameters without defaults, in
// declaration order.
func (s *Service) Required() []string {
	out := make([]string, len(s.required))
	copy(out, s.required)
	return out
}

// Allowed returns every declared parameter name, in declaration order.
func (s *Service) Allowed() []string {
	out := make([]string, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, p.Name)
	}
	return out
}

// Call binds args and invokes the callable with the shared context. Errors
// returned by the callable are passed through unchanged.
func (s *Service) Call(ctx context.Context, dc *Context, args Args) (any, error) {
	bound, err := s.bind(args)
	if err != nil {
		return nil, err
	}
	return s.fn(ctx, dc, bound)
}

// bind checks required parameters first, in declaration order, then
// rejects undeclared names in sorted order so the reported name is stable.
func (s *Service) bind(args Args) (Args, error) {
	for _, name := range s.required {
		if _, ok := args[name]; !ok {
			return nil, MissingRequiredArgument(name)
		}
	}

	var unknown []string
	for name := range args {
		if _, ok := s.allowed[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, UnknownArgument(unknown[0])
	}

	bound := make(Args, len(s.params))
	for _, p := range s.params {
		if v, ok := args[p.Name]; ok {
			bound[p.Name] = v
		} else if p.Optional {
			bound[p.Name] = p.Default
		}
	}
	return bound, nil
}
