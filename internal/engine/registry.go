package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// Invocation is one fully validated call handed to a handler.
type Invocation struct {
	SessionID string
	Service   string
	Operation string
	Params    catalog.ParameterSet

	// Token is the per-session idempotency token, empty when the
	// handler's registration does not accept one.
	Token string
}

// Outcome is what a successful handler call returns.
type Outcome struct {
	ResourceIDs []string
	Metadata    map[string]string
}

// Handler performs one (service, operation) pair against the provider.
// Errors must come back classified (see Error) or they are treated as
// internal faults.
type Handler interface {
	Execute(ctx context.Context, inv Invocation) (*Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv Invocation) (*Outcome, error)

func (f HandlerFunc) Execute(ctx context.Context, inv Invocation) (*Outcome, error) {
	return f(ctx, inv)
}

// Registration binds a handler to its route and retry-relevant traits.
type Registration struct {
	Service   string
	Operation string

	// Mutating marks calls that change provider state. Read-only calls
	// may always be retried after an ambiguous failure.
	Mutating bool

	// Idempotent marks mutating calls whose repetition cannot
	// double-apply, like stopping an already stopping instance.
	Idempotent bool

	// AcceptsToken marks handlers that pass the idempotency token
	// through to the provider, making ambiguous-failure retries safe.
	AcceptsToken bool

	Handler Handler
}

// Registry routes (service, operation) pairs to their handlers with a
// single lookup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Registration)}
}

func (r *Registry) Register(reg Registration) error {
	if reg.Service == "" || reg.Operation == "" || reg.Handler == nil {
		return fmt.Errorf("engine registry: incomplete registration %s/%s", reg.Service, reg.Operation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := routeKey(reg.Service, reg.Operation)
	if _, exists := r.handlers[k]; exists {
		return fmt.Errorf("engine registry: %s already registered", k)
	}
	r.handlers[k] = reg
	return nil
}

func (r *Registry) Lookup(service, operation string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[routeKey(service, operation)]
	return reg, ok
}

// Routes lists registered service/operation pairs, sorted.
func (r *Registry) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		routes = append(routes, k)
	}
	sort.Strings(routes)
	return routes
}

func routeKey(service, operation string) string {
	return service + "/" + operation
}
