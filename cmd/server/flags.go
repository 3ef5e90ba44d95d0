package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/internal/server"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/pkg/constants"
)

// Config is the complete server process configuration
type Config struct {
	LogLevel   string            `mapstructure:"log_level"`
	LogFormat  string            `mapstructure:"log_format"`
	Server     server.Config     `mapstructure:"server"`
	Storage    storage.Config    `mapstructure:"storage"`
	Evaluation evaluation.Config `mapstructure:"evaluation"`
	Metrics    metrics.Config    `mapstructure:"metrics"`
	Jobs       JobsConfig        `mapstructure:"jobs"`
}

// JobsConfig controls the asynchronous evaluation queue
type JobsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRetries   int           `mapstructure:"max_retries"`
	LeaseTimeout time.Duration `mapstructure:"lease_timeout"`
}

// flag name -> config key
var flagBindings = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"log-level":    "log_level",
	"log-format":   "log_format",
	"storage":      "storage.type",
	"data-dir":     "storage.file.base_path",
	"redis-addr":   "storage.redis.addr",
	"s3-bucket":    "storage.s3.bucket",
	"metrics-path": "server.metrics_path",
}

func addFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file")
	flags.String("host", constants.DefaultHost, "Server host")
	flags.Int("port", constants.DefaultPort, "Server port")
	flags.String("log-level", constants.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, text)")
	flags.String("storage", constants.StorageTypeFile, "Storage backend (file, s3, redis)")
	flags.String("data-dir", constants.DefaultDataDir, "Base directory of the file backend")
	flags.String("redis-addr", "localhost:6379", "Redis address")
	flags.String("s3-bucket", "", "S3 bucket")
	flags.String("metrics-path", "/metrics", "Prometheus metrics path")
}

// loadConfig merges defaults, the optional config file, MIA_* environment
// variables and command line flags, in increasing order of precedence
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for name, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	v.SetEnvPrefix("MIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := flags.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	srv := server.DefaultConfig()
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.idle_timeout", srv.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("server.enable_metrics", srv.EnableMetrics)
	v.SetDefault("server.enable_cors", srv.EnableCORS)
	v.SetDefault("server.max_request_size", srv.MaxRequestSize)

	v.SetDefault("storage.file.create_dirs", true)
	v.SetDefault("storage.redis.key_prefix", constants.DefaultRedisPrefix)
	v.SetDefault("storage.s3.region", "us-east-1")

	eval := evaluation.DefaultConfig()
	v.SetDefault("evaluation.timeout", eval.Timeout)
	v.SetDefault("evaluation.classifier.learning_rate", eval.Classifier.LearningRate)
	v.SetDefault("evaluation.classifier.epochs", eval.Classifier.Epochs)
	v.SetDefault("evaluation.classifier.l2", eval.Classifier.L2)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", constants.AppName)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.max_retries", 2)
	v.SetDefault("jobs.lease_timeout", constants.DefaultJobLeaseTimeout)
}
