package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/tests/helpers"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(parseFlags(t))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultHost, config.Server.Host)
	assert.Equal(t, constants.DefaultPort, config.Server.Port)
	assert.Equal(t, "/metrics", config.Server.MetricsPath)
	assert.Equal(t, constants.DefaultShutdownTimeout, config.Server.ShutdownTimeout)
	assert.Equal(t, constants.StorageTypeFile, config.Storage.Type)
	require.NotNil(t, config.Storage.File)
	assert.Equal(t, constants.DefaultDataDir, config.Storage.File.BasePath)
	assert.True(t, config.Storage.File.CreateDirs)
	assert.Equal(t, 10*time.Minute, config.Evaluation.Timeout)
	require.NotNil(t, config.Evaluation.Classifier)
	assert.Equal(t, constants.DefaultEpochs, config.Evaluation.Classifier.Epochs)
	assert.True(t, config.Metrics.Enabled)
	assert.True(t, config.Jobs.Enabled)
	assert.Equal(t, 2, config.Jobs.MaxRetries)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`server:
  port: 9000
  host: 127.0.0.1
log_level: warn
`), 0644))

	t.Setenv("MIA_LOG_FORMAT", "text")

	config, err := loadConfig(parseFlags(t, "--config", cfgFile, "--port", "9100", "--data-dir", dir))
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port, "flag beats file")
	assert.Equal(t, "127.0.0.1", config.Server.Host, "file beats flag default")
	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat, "env beats flag default")
	assert.Equal(t, dir, config.Storage.File.BasePath)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestNewApp(t *testing.T) {
	env := helpers.NewTestEnvironment(t)

	config, err := loadConfig(parseFlags(t, "--data-dir", filepath.Join(env.Config.TempDir, "store")))
	require.NoError(t, err)

	srv, cleanup, err := newApp(env.Context, config, env.Logger)
	require.NoError(t, err)
	defer cleanup()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/health", "/metrics", constants.APIPrefix + "/generators", constants.APIPrefix + "/datasets", constants.APIPrefix + "/jobs"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestNewAppUnknownStorage(t *testing.T) {
	env := helpers.NewTestEnvironment(t)

	config, err := loadConfig(parseFlags(t, "--storage", "tape"))
	require.NoError(t, err)

	_, _, err = newApp(env.Context, config, env.Logger)
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	logger := setupLogger("bogus", "json")
	assert.Equal(t, "info", logger.GetLevel().String())

	logger = setupLogger("debug", "text")
	assert.Equal(t, "debug", logger.GetLevel().String())
}
