package directory

import (
	"fmt"
	"sync"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Constructor defines a function that creates directory backends
type Constructor func(cfg *config.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) (interfaces.DirectoryService, error)

// Factory manages directory backend instances
type Factory struct {
	mu        sync.RWMutex
	providers map[types.BackendType]Constructor
	logger    interfaces.Logger
	metrics   interfaces.Metrics
}

// NewFactory creates a directory backend factory with the built-in providers
func NewFactory(logger interfaces.Logger, metrics interfaces.Metrics) *Factory {
	factory := &Factory{
		providers: make(map[types.BackendType]Constructor),
		logger:    logger,
		metrics:   metrics,
	}

	factory.RegisterProvider(types.BackendSQLite, func(cfg *config.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) (interfaces.DirectoryService, error) {
		return NewSQLiteDirectory(cfg, logger, metrics)
	})

	factory.RegisterProvider(types.BackendNeo4j, func(cfg *config.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) (interfaces.DirectoryService, error) {
		return NewNeo4jDirectory(cfg, logger, metrics)
	})

	return factory
}

// RegisterProvider registers a new backend provider
func (f *Factory) RegisterProvider(backend types.BackendType, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.providers[backend] = constructor

	if f.logger != nil {
		f.logger.Debug("directory backend registered", map[string]interface{}{
			"backend": string(backend),
		})
	}
}

// Create creates a directory backend from configuration
func (f *Factory) Create(cfg *config.DirectoryConfig) (interfaces.DirectoryService, error) {
	f.mu.RLock()
	constructor, exists := f.providers[cfg.Backend]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported directory backend: %s", cfg.Backend)
	}

	instance, err := constructor(cfg, f.logger, f.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory backend: %w", err)
	}

	if f.metrics != nil {
		f.metrics.Counter("directory_backends_created", 1, map[string]string{
			"backend": string(cfg.Backend),
		})
	}

	return instance, nil
}
