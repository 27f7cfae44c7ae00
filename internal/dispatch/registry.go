package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// noop is the built-in default service: no arguments, no result.
var noop = NewSpec(func(context.Context, *Context, Args) (any, error) {
	return nil, nil
})

// Registry is a named table of services plus one default service.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
	def      *Service
}

// NewRegistry creates a registry whose default service is a no-op.
func NewRegistry() *Registry {
	def, err := NewService(noop)
	if err != nil {
		panic(fmt.Sprintf("dispatch: building no-op default: %v", err))
	}
	return &Registry{
		services: make(map[string]*Service),
		def:      def,
	}
}

// Register builds a service from spec and stores it under name, replacing
// any service previously registered under the same name.
func (r *Registry) Register(name string, spec Spec) error {
	if name == "" {
		return ErrEmptyServiceName
	}
	svc, err := NewService(spec)
	if err != nil {
		return fmt.Errorf("register service %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = svc
	return nil
}

// RegisterDefault replaces the default service.
func (r *Registry) RegisterDefault(spec Spec) error {
	svc, err := NewService(spec)
	if err != nil {
		return fmt.Errorf("register default service: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = svc
	return nil
}

// MustRegister is Register that panics on error. Intended for init-time
// wiring where a bad spec is a programming error.
func (r *Registry) MustRegister(name string, spec Spec) {
	if err := r.Register(name, spec); err != nil {
		panic(fmt.Sprintf("dispatch: %v", err))
	}
}

// MustRegisterDefault is RegisterDefault that panics on error.
func (r *Registry) MustRegisterDefault(spec Spec) {
	if err := r.RegisterDefault(spec); err != nil {
		panic(fmt.Sprintf("dispatch: %v", err))
	}
}

// Lookup resolves a service name. The empty name resolves to the default.
func (r *Registry) Lookup(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		return r.def, true
	}
	svc, ok := r.services[name]
	return svc, ok
}

// Default returns the current default service.
func (r *Registry) Default() *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Names returns the registered (non-default) service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process resolves serviceName and calls it with dc and args. An empty
// name selects the default service and nil args are treated as empty.
func (r *Registry) Process(ctx context.Context, dc *Context, serviceName string, args Args) (any, error) {
	if args == nil {
		args = Args{}
	}
	svc, ok := r.Lookup(serviceName)
	if !ok {
		return nil, UnknownService(serviceName)
	}
	return svc.Call(ctx, dc, args)
}
