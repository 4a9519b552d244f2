package capability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Registry holds registered capabilities in registration order
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	order        []string
}

// NewRegistry creates a new capability registry
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
	}
}

// DefaultRegistry returns a registry with every built-in capability, in the
// order their resources are declared.
func DefaultRegistry(ctx context.Context) (*Registry, error) {
	r := NewRegistry()
	for _, c := range []Capability{
		SharedLogPolicy{},
		QueryLogging{},
		Zone{},
		Delegation{},
		Mail{},
		Verification{},
		CNAME{},
		Site{},
	} {
		if err := r.Register(ctx, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register registers a capability under its name
func (r *Registry) Register(ctx context.Context, c Capability) error {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "registry.Register")
	defer span.End()

	span.SetAttributes(attribute.String("capability.name", c.Name()))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[c.Name()]; exists {
		err := fmt.Errorf("capability %q is already registered", c.Name())
		span.RecordError(err)
		return err
	}

	r.capabilities[c.Name()] = c
	r.order = append(r.order, c.Name())
	return nil
}

// Get retrieves a capability by name
func (r *Registry) Get(ctx context.Context, name string) (Capability, error) {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "registry.Get")
	defer span.End()

	span.SetAttributes(attribute.String("capability.name", name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.capabilities[name]
	if !exists {
		err := fmt.Errorf("capability %q is not registered", name)
		span.RecordError(err)
		return nil, err
	}

	return c, nil
}

// List returns all registered capability names in registration order
func (r *Registry) List(ctx context.Context) []string {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "registry.List")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	span.SetAttributes(attribute.Int("capability.count", len(names)))

	return names
}

// ForScope returns the capabilities of scope in registration order
func (r *Registry) ForScope(scope Scope) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Capability
	for _, name := range r.order {
		if c := r.capabilities[name]; c.Scope() == scope {
			out = append(out, c)
		}
	}
	return out
}
