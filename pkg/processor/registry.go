package processor

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/pkg/config"
)

// Factory is a function that creates a new processor instance.
type Factory func(cfg config.ProcessorConfig, log *logger.Logger) (Processor, error)

var (
	registry = map[string]Factory{
		config.DefaultProcessor: func(config.ProcessorConfig, *logger.Logger) (Processor, error) {
			return NewDefault(), nil
		},
	}
	mu sync.RWMutex
)

// Register registers a processor factory with the given name.
// This is typically called in init() functions of processor packages.
// The name is case-insensitive and will be stored in lowercase.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("processor with name %s already in processor registry. "+
			"It will be overwritten.", name)
	}

	registry[name] = factory
}

// GetFactory returns the factory for the given name, or nil if it is not registered.
// The lookup is case-insensitive.
func GetFactory(name string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[strings.ToLower(name)]
}

// ListRegistered returns the names of all registered processors, sorted.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Create creates a processor using the factory registered under cfg.Name.
func Create(cfg config.ProcessorConfig, log *logger.Logger) (Processor, error) {
	factory := GetFactory(cfg.Name)
	if factory == nil {
		return nil, fmt.Errorf("unknown processor: %s (registered processors: %v)", cfg.Name, ListRegistered())
	}

	return factory(cfg, log)
}
