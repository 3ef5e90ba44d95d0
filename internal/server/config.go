package server

import (
	"fmt"
	"time"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
)

// Config contains the HTTP server configuration
type Config struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	EnableMetrics   bool          `json:"enable_metrics" yaml:"enable_metrics" mapstructure:"enable_metrics"`
	MetricsPath     string        `json:"metrics_path" yaml:"metrics_path" mapstructure:"metrics_path"`
	EnableCORS      bool          `json:"enable_cors" yaml:"enable_cors" mapstructure:"enable_cors"`
	MaxRequestSize  int64         `json:"max_request_size" yaml:"max_request_size" mapstructure:"max_request_size"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            constants.DefaultHost,
		Port:            constants.DefaultPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    10 * time.Minute,
		IdleTimeout:     constants.DefaultIdleTimeout,
		ShutdownTimeout: constants.DefaultShutdownTimeout,
		EnableMetrics:   true,
		MetricsPath:     "/metrics",
		EnableCORS:      true,
		MaxRequestSize:  constants.MaxUploadSize,
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.NewConfigurationError(fmt.Sprintf("invalid port: %d", c.Port))
	}

	if c.ReadTimeout <= 0 {
		return errors.NewConfigurationError("read timeout must be positive")
	}

	if c.WriteTimeout <= 0 {
		return errors.NewConfigurationError("write timeout must be positive")
	}

	if c.MaxRequestSize <= 0 {
		return errors.NewConfigurationError("max request size must be positive")
	}

	return nil
}

// GetAddress returns the listen address
func (c *Config) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
