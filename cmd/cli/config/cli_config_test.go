package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/pkg/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultLogLevel, config.LogLevel)
	assert.Equal(t, constants.StorageTypeFile, config.Storage.Type)
	require.NotNil(t, config.Storage.File)
	assert.Equal(t, constants.DefaultDataDir, config.Storage.File.BasePath)
	require.NotNil(t, config.Evaluation.Classifier)
	assert.Equal(t, constants.DefaultEpochs, config.Evaluation.Classifier.Epochs)
	assert.Equal(t, 10*time.Minute, config.Evaluation.Timeout)
	assert.Equal(t, constants.GeneratorTypeRaw, config.Defaults.Generator)
	assert.Equal(t, constants.DefaultNumTestSamples, config.Defaults.NumTestSamples)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
storage:
  type: redis
  redis:
    addr: cache:6379
defaults:
  generator: marginals
  seed: 17
evaluation:
  classifier:
    epochs: 50
`), 0644))
	t.Setenv("MIA_LOG_FORMAT", "json")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, constants.StorageTypeRedis, config.Storage.Type)
	require.NotNil(t, config.Storage.Redis)
	assert.Equal(t, "cache:6379", config.Storage.Redis.Addr)
	assert.Equal(t, constants.DefaultRedisPrefix, config.Storage.Redis.KeyPrefix)
	assert.Equal(t, constants.GeneratorTypeMarginals, config.Defaults.Generator)
	assert.Equal(t, uint64(17), config.Defaults.Seed)
	assert.Equal(t, 50, config.Evaluation.Classifier.Epochs)
	assert.Equal(t, 0.1, config.Evaluation.Classifier.LearningRate)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	config := &CLIConfig{LogLevel: "warn", LogFormat: "json"}
	logger, err := config.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = (&CLIConfig{LogLevel: "loud"}).NewLogger()
	assert.Error(t, err)

	_, err = (&CLIConfig{LogLevel: "info", LogFormat: "xml"}).NewLogger()
	assert.Error(t, err)
}
