package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "mia"
	AppDescription = "Membership inference evaluation toolkit for synthetic data"
	AppVersion     = "0.1.0"

	// API constants
	APIVersion = "v1"
	APIPrefix  = "/api/v1"

	// Environment variable prefix for configuration overrides
	EnvPrefix = "MIA"

	// Server defaults
	DefaultPort            = 8080
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Attack defaults
	DefaultNumTrainingSamples = 100
	DefaultNumTestSamples     = 50
	DefaultTrainingSize       = 100
	DefaultSyntheticSize      = 100

	// Classifier defaults
	DefaultEpochs       = 500
	DefaultLearningRate = 0.1
	DefaultL2           = 1e-3

	// Storage defaults
	DefaultStorageTimeout = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultDataDir        = "./data"
	DefaultRedisPrefix    = "mia:"

	// Job queue defaults
	DefaultJobLeaseTimeout = 5 * time.Minute
	DefaultJobHeartbeat    = time.Minute

	// Request limits
	MaxUploadSize = 100 * 1024 * 1024
	MaxSamples    = 10000
)

// Generator types
const (
	GeneratorTypeRaw       = "raw"
	GeneratorTypeMarginals = "marginals"
)

// Feature set types
const (
	FeatureSetFlatten = "flatten"
	FeatureSetNaive   = "naive"
)

// Storage backend types
const (
	StorageTypeFile  = "file"
	StorageTypeS3    = "s3"
	StorageTypeRedis = "redis"
)

// File extensions of a persisted dataset
const (
	DescriptionExtension = ".json"
	DataExtension        = ".csv"
)

// HealthProbeKey is the blob key the storage health check looks up
const HealthProbeKey = ".health"

// Metric label values
const (
	MetricStatusSuccess = "success"
	MetricStatusError   = "error"
)

// HTTP headers
const (
	HeaderContentType = "Content-Type"
	HeaderRequestID   = "X-Request-ID"
)
