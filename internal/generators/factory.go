package generators

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// CreateFunc builds a fresh, unfitted generator
type CreateFunc func() interfaces.Generator

// Factory creates generators by type name
type Factory struct {
	creators map[string]CreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
	metrics  *metrics.Collector
}

// NewFactory creates a factory with the built-in generators registered
func NewFactory(logger *logrus.Logger, collector *metrics.Collector) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]CreateFunc),
		logger:   logger,
		metrics:  collector,
	}
	factory.registerDefaults()

	return factory
}

// CreateGenerator creates a new generator instance
func (f *Factory) CreateGenerator(generatorType string) (interfaces.Generator, error) {
	f.mu.RLock()
	createFunc, exists := f.creators[generatorType]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("generator type '%s' is not supported", generatorType)).
			WithContext("available", f.GetAvailableGenerators())
	}

	return createFunc(), nil
}

// GetAvailableGenerators returns all registered generator types, sorted
func (f *Factory) GetAvailableGenerators() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for generatorType := range f.creators {
		types = append(types, generatorType)
	}
	slices.Sort(types)

	return types
}

// RegisterGenerator registers a new generator type
func (f *Factory) RegisterGenerator(generatorType string, createFunc CreateFunc) error {
	if generatorType == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "generator type cannot be empty")
	}
	if createFunc == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "generator create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.creators[generatorType] = createFunc

	f.logger.WithFields(logrus.Fields{
		"generator_type": generatorType,
	}).Debug("Registered generator type")

	return nil
}

// IsSupported checks if a generator type is supported
func (f *Factory) IsSupported(generatorType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.creators[generatorType]
	return exists
}

func (f *Factory) registerDefaults() {
	f.RegisterGenerator(constants.GeneratorTypeRaw, func() interfaces.Generator {
		return NewRaw(f.logger, f.metrics)
	})
	f.RegisterGenerator(constants.GeneratorTypeMarginals, func() interfaces.Generator {
		return NewMarginals(f.logger, f.metrics)
	})
}
