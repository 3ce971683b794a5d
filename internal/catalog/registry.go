package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound reports an unsupported (service, operation) pair. Callers
// surface it to the operator as "unsupported operation", not as a crash.
var ErrNotFound = errors.New("operation schema not found")

type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*OperationSchema
}

func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*OperationSchema),
	}
}

func (r *Registry) Register(s *OperationSchema) error {
	if err := s.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.Key()
	if _, exists := r.schemas[key]; exists {
		return fmt.Errorf("schema %q already registered", key)
	}
	r.schemas[key] = s
	return nil
}

func (r *Registry) Lookup(service, operation string) (*OperationSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[service+"/"+operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, service, operation)
	}
	return s, nil
}

// List returns all registered schemas ordered by key.
func (r *Registry) List() []*OperationSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*OperationSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Default builds the registry of built-in EC2 and S3 operation schemas.
// Registration failures here are programming errors and panic at startup.
func Default() *Registry {
	r := NewRegistry()
	for _, s := range builtinSchemas() {
		if err := r.Register(s); err != nil {
			panic(fmt.Sprintf("catalog: %v", err))
		}
	}
	return r
}

func builtinSchemas() []*OperationSchema {
	var all []*OperationSchema
	all = append(all, ec2Schemas()...)
	all = append(all, s3Schemas()...)
	return all
}
