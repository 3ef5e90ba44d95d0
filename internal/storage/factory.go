package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/storage/implementations/file"
	"github.com/inferloop/mia/internal/storage/implementations/redis"
	"github.com/inferloop/mia/internal/storage/implementations/s3"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// Config selects and configures a blob storage backend
type Config struct {
	Type  string                  `json:"type" yaml:"type" mapstructure:"type"`
	File  *file.FileStorageConfig `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	S3    *s3.S3Config            `json:"s3,omitempty" yaml:"s3,omitempty" mapstructure:"s3"`
	Redis *redis.RedisConfig      `json:"redis,omitempty" yaml:"redis,omitempty" mapstructure:"redis"`
}

// DefaultConfig stores datasets under the default data directory
func DefaultConfig() *Config {
	return &Config{
		Type: constants.StorageTypeFile,
		File: &file.FileStorageConfig{
			BasePath:   constants.DefaultDataDir,
			CreateDirs: true,
		},
	}
}

// CreateFunc builds and connects a backend
type CreateFunc func(ctx context.Context, config *Config, logger *logrus.Logger) (interfaces.BlobStorage, error)

// Factory creates blob storage backends by type name
type Factory struct {
	creators map[string]CreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFactory creates a new storage factory
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]CreateFunc),
		logger:   logger,
	}

	factory.registerDefaults()

	return factory
}

// CreateStorage creates and connects the backend named by config.Type
func (f *Factory) CreateStorage(ctx context.Context, config *Config) (interfaces.BlobStorage, error) {
	if config == nil {
		config = DefaultConfig()
	}

	f.mu.RLock()
	createFunc, exists := f.creators[config.Type]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.WrapError(errors.ErrStorageNotFound, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig,
			fmt.Sprintf("Storage type '%s' is not supported", config.Type))
	}

	storage, err := createFunc(ctx, config, f.logger)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, "CREATION_FAILED", fmt.Sprintf("Failed to create %s storage", config.Type))
	}

	f.logger.WithFields(logrus.Fields{
		"storage_type": config.Type,
	}).Info("Created storage instance")

	return storage, nil
}

// GetSupportedTypes returns all supported storage types
func (f *Factory) GetSupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for storageType := range f.creators {
		types = append(types, storageType)
	}
	sort.Strings(types)

	return types
}

// RegisterStorage registers a new storage type
func (f *Factory) RegisterStorage(storageType string, createFunc CreateFunc) error {
	if storageType == "" {
		return errors.NewValidationError("INVALID_TYPE", "Storage type cannot be empty")
	}

	if createFunc == nil {
		return errors.NewValidationError("INVALID_CREATOR", "Create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.creators[storageType] = createFunc

	f.logger.WithFields(logrus.Fields{
		"storage_type": storageType,
	}).Debug("Registered storage type")

	return nil
}

// IsSupported checks if a storage type is supported
func (f *Factory) IsSupported(storageType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.creators[storageType]
	return exists
}

func (f *Factory) registerDefaults() {
	f.creators[constants.StorageTypeFile] = func(ctx context.Context, config *Config, logger *logrus.Logger) (interfaces.BlobStorage, error) {
		fileConfig := config.File
		if fileConfig == nil {
			fileConfig = DefaultConfig().File
		}
		return file.NewFileStorage(fileConfig, logger)
	}

	f.creators[constants.StorageTypeS3] = func(ctx context.Context, config *Config, logger *logrus.Logger) (interfaces.BlobStorage, error) {
		storage, err := s3.NewS3Storage(config.S3, logger)
		if err != nil {
			return nil, err
		}
		if err := storage.Connect(ctx); err != nil {
			return nil, err
		}
		return storage, nil
	}

	f.creators[constants.StorageTypeRedis] = func(ctx context.Context, config *Config, logger *logrus.Logger) (interfaces.BlobStorage, error) {
		storage, err := redis.NewRedisStorage(config.Redis, logger)
		if err != nil {
			return nil, err
		}
		if err := storage.Connect(ctx); err != nil {
			return nil, err
		}
		return storage, nil
	}
}
