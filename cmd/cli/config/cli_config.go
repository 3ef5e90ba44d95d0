package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/inferloop/mia/internal/classifiers"
	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/pkg/constants"
)

// CLIConfig is the merged configuration of file, environment and defaults
type CLIConfig struct {
	LogLevel   string             `mapstructure:"log_level"`
	LogFormat  string             `mapstructure:"log_format"`
	Storage    storage.Config     `mapstructure:"storage"`
	Evaluation evaluation.Config  `mapstructure:"evaluation"`
	Defaults   evaluation.Request `mapstructure:"defaults"`
	Metrics    metrics.Config     `mapstructure:"metrics"`
}

// LoadConfig reads cfgFile, or ~/.mia/config.yaml when empty, and applies
// MIA_* environment overrides. A missing default file is not an error.
func LoadConfig(cfgFile string) (*CLIConfig, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(GetDefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &CLIConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	lr := classifiers.DefaultLogisticRegressionConfig()
	eval := evaluation.DefaultConfig()

	v.SetDefault("log_level", constants.DefaultLogLevel)
	v.SetDefault("log_format", constants.DefaultLogFormat)

	v.SetDefault("storage.type", constants.StorageTypeFile)
	v.SetDefault("storage.file.base_path", constants.DefaultDataDir)
	v.SetDefault("storage.file.create_dirs", true)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.key_prefix", constants.DefaultRedisPrefix)
	v.SetDefault("storage.s3.region", "us-east-1")

	v.SetDefault("evaluation.timeout", eval.Timeout)
	v.SetDefault("evaluation.classifier.learning_rate", lr.LearningRate)
	v.SetDefault("evaluation.classifier.epochs", lr.Epochs)
	v.SetDefault("evaluation.classifier.l2", lr.L2)

	v.SetDefault("defaults.generator", constants.GeneratorTypeRaw)
	v.SetDefault("defaults.feature_set", constants.FeatureSetNaive)
	v.SetDefault("defaults.training_size", constants.DefaultTrainingSize)
	v.SetDefault("defaults.synthetic_size", constants.DefaultSyntheticSize)
	v.SetDefault("defaults.num_training_samples", constants.DefaultNumTrainingSamples)
	v.SetDefault("defaults.num_test_samples", constants.DefaultNumTestSamples)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", constants.AppName)
}

// NewLogger builds a logger from the configured level and format
func (c *CLIConfig) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logger.SetLevel(level)

	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}

	return logger, nil
}

// GetDefaultConfigDir returns ~/.mia
func GetDefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+constants.AppName)
}
