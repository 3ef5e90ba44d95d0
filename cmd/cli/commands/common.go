package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/cmd/cli/config"
	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/storage"
)

// GlobalOptions holds the persistent root flags
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
}

// runtime bundles what every command needs after flag parsing
type runtime struct {
	config *config.CLIConfig
	logger *logrus.Logger
}

func loadRuntime(globals *GlobalOptions) (*runtime, error) {
	cfg, err := config.LoadConfig(globals.ConfigFile)
	if err != nil {
		return nil, err
	}
	if globals.Verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	return &runtime{config: cfg, logger: logger}, nil
}

// openStore connects the configured storage backend
func (rt *runtime) openStore(ctx context.Context) (*storage.DatasetStore, func(), error) {
	blobs, err := storage.NewFactory(rt.logger).CreateStorage(ctx, &rt.config.Storage)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewDatasetStore(blobs, rt.logger, nil), func() { blobs.Close() }, nil
}

// loadDataset reads a local <path>.json/<path>.csv pair, or the named
// dataset from the configured store
func (rt *runtime) loadDataset(ctx context.Context, path, name string, seed uint64) (*datasets.Tabular, error) {
	switch {
	case path != "" && name != "":
		return nil, fmt.Errorf("--data and --dataset are mutually exclusive")
	case path != "":
		return datasets.Load(path, datasets.WithSeed(seed))
	case name != "":
		store, closeStore, err := rt.openStore(ctx)
		if err != nil {
			return nil, err
		}
		defer closeStore()
		return store.Load(ctx, name, datasets.WithSeed(seed))
	default:
		return nil, fmt.Errorf("one of --data or --dataset is required")
	}
}

// openOutput returns stdout for "-" or an empty path, else creates the file
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
