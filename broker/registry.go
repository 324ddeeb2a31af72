package broker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/streambridge/errors"
)

// SourceFactory creates a source adapter from its connection map.
type SourceFactory func(connection map[string]any, deps Dependencies) (Source, error)

// PublisherFactory creates a publisher adapter from its connection map.
type PublisherFactory func(connection map[string]any, deps Dependencies) (Publisher, error)

// Registry maps adapter type names to factories. Thread-safe.
type Registry struct {
	mu         sync.RWMutex
	sources    map[string]SourceFactory
	publishers map[string]PublisherFactory
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:    make(map[string]SourceFactory),
		publishers: make(map[string]PublisherFactory),
	}
}

// RegisterSource registers a source factory under an adapter type name.
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	if name == "" || factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterSource",
			"name and factory required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("source adapter %q already registered", name),
			"Registry", "RegisterSource", "duplicate registration")
	}
	r.sources[name] = factory
	return nil
}

// RegisterPublisher registers a publisher factory under an adapter type
// name.
func (r *Registry) RegisterPublisher(name string, factory PublisherFactory) error {
	if name == "" || factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterPublisher",
			"name and factory required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.publishers[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("publisher adapter %q already registered", name),
			"Registry", "RegisterPublisher", "duplicate registration")
	}
	r.publishers[name] = factory
	return nil
}

// NewSource instantiates a source adapter by type name.
func (r *Registry) NewSource(name string, connection map[string]any, deps Dependencies) (Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownBroker, name),
			"Registry", "NewSource", "lookup")
	}
	return factory(connection, deps)
}

// NewPublisher instantiates a publisher adapter by type name.
func (r *Registry) NewPublisher(name string, connection map[string]any, deps Dependencies) (Publisher, error) {
	r.mu.RLock()
	factory, ok := r.publishers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownBroker, name),
			"Registry", "NewPublisher", "lookup")
	}
	return factory(connection, deps)
}

// SourceTypes returns the registered source adapter names, sorted.
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublisherTypes returns the registered publisher adapter names, sorted.
func (r *Registry) PublisherTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
