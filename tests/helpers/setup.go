package helpers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/pkg/models"
)

// TestDescriptionJSON describes a small mixed-type table
const TestDescriptionJSON = `[
	{"name": "age", "type": "countable", "representation": "integer"},
	{"name": "income", "type": "real", "representation": "number"},
	{"name": "sex", "type": "finite", "representation": ["F", "M"]}
]`

// TestConfig contains configuration for test setup
type TestConfig struct {
	LogLevel        string
	TimeoutDuration time.Duration
	TempDir         string
}

// TestEnvironment provides a test environment with common utilities
type TestEnvironment struct {
	Config  *TestConfig
	Logger  *logrus.Logger
	Context context.Context
	Cancel  context.CancelFunc
	T       *testing.T
}

// NewTestEnvironment creates a new test environment
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	config := &TestConfig{
		LogLevel:        "debug",
		TimeoutDuration: 30 * time.Second,
		TempDir:         t.TempDir(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.TimeoutDuration)
	env := &TestEnvironment{
		Config:  config,
		Logger:  GetTestLogger(t),
		Context: ctx,
		Cancel:  cancel,
		T:       t,
	}
	t.Cleanup(env.Cleanup)
	return env
}

// Cleanup performs test cleanup
func (env *TestEnvironment) Cleanup() {
	if env.Cancel != nil {
		env.Cancel()
	}
}

// Description parses TestDescriptionJSON
func (env *TestEnvironment) Description() *models.DataDescription {
	return TestDescription(env.T)
}

// Dataset builds n deterministic rows over TestDescription
func (env *TestEnvironment) Dataset(n int) *datasets.Tabular {
	return TestDataset(env.T, n)
}

// TestDescription parses TestDescriptionJSON
func TestDescription(t *testing.T) *models.DataDescription {
	desc, err := models.ParseDataDescription([]byte(TestDescriptionJSON))
	require.NoError(t, err)
	return desc
}

// TestRow is row i of TestDataset
func TestRow(i int) models.Row {
	sex := "F"
	if i%2 == 1 {
		sex = "M"
	}
	return models.Row{
		models.IntValue(int64(20 + i)),
		models.FloatValue(1000 * float64(i+1)),
		models.CategoryValue(sex),
	}
}

// TestDataset builds n distinct rows over TestDescription
func TestDataset(t *testing.T, n int) *datasets.Tabular {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = TestRow(i)
	}
	ds, err := datasets.NewTabular(TestDescription(t), rows, datasets.WithSeed(42))
	require.NoError(t, err)
	return ds
}

// RandomDataset builds n rows drawn around the given income mean
func RandomDataset(t *testing.T, n int, incomeMean float64, seed uint64) *datasets.Tabular {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	rows := make([]models.Row, n)
	for i := range rows {
		sex := "F"
		if rng.IntN(2) == 1 {
			sex = "M"
		}
		rows[i] = models.Row{
			models.IntValue(int64(18 + rng.IntN(60))),
			models.FloatValue(incomeMean + 100*rng.NormFloat64()),
			models.CategoryValue(sex),
		}
	}
	ds, err := datasets.NewTabular(TestDescription(t), rows, datasets.WithSeed(seed))
	require.NoError(t, err)
	return ds
}

// WriteTestFiles writes <dir>/<name>.json and <dir>/<name>.csv for a dataset
// of n rows and returns the path prefix
func (env *TestEnvironment) WriteTestFiles(name string, n int) string {
	path := fmt.Sprintf("%s/%s", env.Config.TempDir, name)
	require.NoError(env.T, datasets.Save(env.Dataset(n), path))
	return path
}

// WaitForCondition waits for a condition to be true with timeout
func (env *TestEnvironment) WaitForCondition(condition func() bool, timeout time.Duration, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			env.T.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// GetTestLogger returns a test logger
func GetTestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(testWriter{t})
	return logger
}

// GetTestContext returns a test context with timeout
func GetTestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// SkipIfShort skips the test if testing.Short() is true
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
