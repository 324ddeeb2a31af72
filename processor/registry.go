package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/streambridge/errors"
)

// Factory builds a processor from its configuration block. The args map
// comes straight from the config file and may be nil.
type Factory func(args map[string]any) (Processor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a named processor factory. Registering a duplicate name
// returns an invalid-configuration error.
func Register(name string, factory Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "processor", "Register", "name and factory required")
	}
	if _, exists := registry[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("processor %q already registered", name),
			"processor", "Register", "duplicate registration")
	}
	registry[name] = factory
	return nil
}

// New instantiates the named processor. An empty name yields the
// pass-through processor.
func New(name string, args map[string]any) (Processor, error) {
	if name == "" {
		return PassThrough{}, nil
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownProcessor, name),
			"processor", "New", "lookup")
	}
	return factory(args)
}

// Names returns the registered processor names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
