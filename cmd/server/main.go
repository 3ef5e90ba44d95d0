package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/internal/server"
	"github.com/inferloop/mia/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mia-server",
		Short:         "Membership inference evaluation server",
		Version:       GetBuildInfo().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, config)
		},
	}
	addFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, config *Config) error {
	logger := setupLogger(config.LogLevel, config.LogFormat)

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting membership inference server")

	srv, cleanup, err := newApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// newApp wires storage, generators, the evaluator and the HTTP server
func newApp(ctx context.Context, config *Config, logger *logrus.Logger) (*server.Server, func(), error) {
	var collector *metrics.Collector
	if config.Metrics.Enabled {
		var err error
		collector, err = metrics.NewCollector(&config.Metrics, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	blobs, err := storage.NewFactory(logger).CreateStorage(ctx, &config.Storage)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := blobs.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close storage")
		}
	}

	store := storage.NewDatasetStore(blobs, logger, collector)
	factory := generators.NewFactory(logger, collector)
	evaluator := evaluation.NewEvaluator(&config.Evaluation, store, factory, logger, collector)

	var queue *jobs.Queue
	if config.Jobs.Enabled {
		queue = jobs.NewQueue(config.Jobs.MaxRetries, config.Jobs.LeaseTimeout, logger)
	}
	handlers := server.NewHandlers(evaluator, store, factory, queue, logger)

	config.Server.EnableMetrics = config.Server.EnableMetrics && collector != nil
	srv, err := server.NewServer(&config.Server, handlers, collector, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set log format
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
