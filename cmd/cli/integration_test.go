package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/tests/helpers"
)

type cliEnv struct {
	*helpers.TestEnvironment
	configFile string
	dataPath   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	env := helpers.NewTestEnvironment(t)
	dir := env.Config.TempDir

	configFile := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf(`log_level: error
storage:
  type: file
  file:
    base_path: %s
    create_dirs: true
`, filepath.Join(dir, "store"))
	require.NoError(t, os.WriteFile(configFile, []byte(config), 0644))

	return &cliEnv{
		TestEnvironment: env,
		configFile:      configFile,
		dataPath:        env.WriteTestFiles("people", 20),
	}
}

func (e *cliEnv) run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIEvaluateJSON(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("evaluate",
		"--data", env.dataPath,
		"--target", "3",
		"--training-size", "6",
		"--synthetic-size", "6",
		"--train-samples", "10",
		"--test-samples", "4",
		"--seed", "7",
		"--format", "json",
	)
	require.NoError(t, err)

	var result evaluation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Contains(t, result.Attack, "Groundhog")
	assert.Equal(t, 3, result.TargetID)
	assert.Len(t, result.Labels, 4)
	assert.Len(t, result.Guesses, 4)
	assert.GreaterOrEqual(t, result.Accuracy, 0.0)
	assert.LessOrEqual(t, result.Accuracy, 1.0)
	assert.NotEmpty(t, result.RunID)
}

func TestCLIEvaluateText(t *testing.T) {
	env := newCLIEnv(t)
	outFile := filepath.Join(env.Config.TempDir, "result.txt")

	_, err := env.run("evaluate",
		"--data", env.dataPath,
		"--generator", "marginals",
		"--feature-set", "flatten",
		"--training-size", "5",
		"--synthetic-size", "5",
		"--train-samples", "6",
		"--test-samples", "2",
		"--seed", "1",
		"--output", outFile,
	)
	require.NoError(t, err)

	helpers.AssertFileExists(t, outFile, "Accuracy:", "flatten", "Advantage:")
}

func TestCLIEvaluateCSVSamples(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("evaluate",
		"--data", env.dataPath,
		"--target", "1",
		"--training-size", "5",
		"--synthetic-size", "5",
		"--train-samples", "6",
		"--test-samples", "3",
		"--seed", "4",
		"--format", "csv",
		"--samples",
	)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "run_id,target_id,sample,label,guess,score", lines[0])
}

func TestCLIEvaluateErrors(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"evaluate"}},
		{"both inputs", []string{"evaluate", "--data", env.dataPath, "--dataset", "people"}},
		{"bad format", []string{"evaluate", "--data", env.dataPath, "--format", "xml"}},
		{"missing files", []string{"evaluate", "--data", filepath.Join(env.Config.TempDir, "nope")}},
		{"target out of range", []string{"evaluate", "--data", env.dataPath, "--target", "40", "--training-size", "5"}},
		{"unknown generator", []string{"evaluate", "--data", env.dataPath, "--generator", "gan"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLISubsets(t *testing.T) {
	env := newCLIEnv(t)
	outDir := filepath.Join(env.Config.TempDir, "shards")

	out, err := env.run("subsets", "--data", env.dataPath, "--count", "3", "--size", "5", "--seed", "2", "--output-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "(5 records)")

	original, err := datasets.Load(env.dataPath)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		subset, err := datasets.Load(filepath.Join(outDir, fmt.Sprintf("subset-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, 5, subset.Len())
		helpers.AssertContainsAll(t, original, subset)
	}

	_, err = env.run("subsets", "--data", env.dataPath, "--count", "2", "--size", "30", "--output-dir", outDir)
	assert.Error(t, err)
}

func TestCLIInspect(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("inspect", "--data", env.dataPath, "--record", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Records: 20")
	assert.Contains(t, out, "Columns: 3")
	assert.Contains(t, out, "income")
	assert.Contains(t, out, "category")
	assert.Contains(t, out, "Record(id=2")
	assert.NotContains(t, out, "Lookup:")
}

func TestCLIDatasetsLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("datasets", "import", env.dataPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported people (20 records)")

	out, err = env.run("datasets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "people")
	assert.Contains(t, out, "file")

	out, err = env.run("inspect", "--dataset", "people")
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 20")

	exportPath := filepath.Join(env.Config.TempDir, "exported")
	_, err = env.run("datasets", "export", "people", exportPath)
	require.NoError(t, err)

	exported, err := datasets.Load(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 20, exported.Len())

	_, err = env.run("datasets", "delete", "people")
	require.NoError(t, err)

	out, err = env.run("datasets", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "people")

	_, err = env.run("datasets", "delete", "people")
	assert.Error(t, err)
}

func TestCLIVersion(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("--version")
	require.NoError(t, err)
	assert.Contains(t, out, "0.1.0")
}
