package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/pkg/constants"
)

type WorkerConfig struct {
	WorkerID        string            `mapstructure:"worker_id"`
	ServerURL       string            `mapstructure:"server_url"`
	Concurrency     int               `mapstructure:"concurrency"`
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	Heartbeat       time.Duration     `mapstructure:"heartbeat_interval"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
	LogLevel        string            `mapstructure:"log_level"`
	LogFormat       string            `mapstructure:"log_format"`
	Storage         storage.Config    `mapstructure:"storage"`
	Evaluation      evaluation.Config `mapstructure:"evaluation"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mia-worker",
		Short:         "Runs queued membership inference evaluations",
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

func addFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file")
	flags.String("worker-id", generateWorkerID(), "Unique worker ID")
	flags.String("server-url", "http://localhost:8080", "Server URL")
	flags.Int("concurrency", 2, "Number of concurrent evaluations")
	flags.Duration("poll-interval", 5*time.Second, "Job polling interval")
	flags.Duration("heartbeat-interval", constants.DefaultJobHeartbeat, "Interval between running-job heartbeats (0 disables)")
	flags.String("log-level", constants.DefaultLogLevel, "Log level")
	flags.String("log-format", "json", "Log format")
	flags.String("storage", constants.StorageTypeFile, "Storage backend (file, s3, redis)")
	flags.String("data-dir", constants.DefaultDataDir, "Base directory of the file backend")
	flags.String("redis-addr", "localhost:6379", "Redis address")
	flags.String("s3-bucket", "", "S3 bucket")
}

var flagBindings = map[string]string{
	"worker-id":          "worker_id",
	"server-url":         "server_url",
	"concurrency":        "concurrency",
	"poll-interval":      "poll_interval",
	"heartbeat-interval": "heartbeat_interval",
	"log-level":          "log_level",
	"log-format":         "log_format",
	"storage":            "storage.type",
	"data-dir":           "storage.file.base_path",
	"redis-addr":         "storage.redis.addr",
	"s3-bucket":          "storage.s3.bucket",
}

func loadConfig(flags *pflag.FlagSet) (*WorkerConfig, error) {
	v := viper.New()

	eval := evaluation.DefaultConfig()
	v.SetDefault("shutdown_timeout", constants.DefaultShutdownTimeout)
	v.SetDefault("storage.file.create_dirs", true)
	v.SetDefault("storage.redis.key_prefix", constants.DefaultRedisPrefix)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("evaluation.timeout", eval.Timeout)
	v.SetDefault("evaluation.classifier.learning_rate", eval.Classifier.LearningRate)
	v.SetDefault("evaluation.classifier.epochs", eval.Classifier.Epochs)
	v.SetDefault("evaluation.classifier.l2", eval.Classifier.L2)

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

	var config WorkerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", config.Concurrency)
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	return &config, nil
}

func run(ctx context.Context, config *WorkerConfig) error {
	logger := setupLogger(config.LogLevel, config.LogFormat)

	logger.WithFields(logrus.Fields{
		"workerID":    config.WorkerID,
		"concurrency": config.Concurrency,
		"serverURL":   config.ServerURL,
	}).Info("Starting membership inference worker")

	blobs, err := storage.NewFactory(logger).CreateStorage(ctx, &config.Storage)
	if err != nil {
		return err
	}
	defer blobs.Close()

	store := storage.NewDatasetStore(blobs, logger, nil)
	evaluator := evaluation.NewEvaluator(&config.Evaluation, store, generators.NewFactory(logger, nil), logger, nil)

	scheduler := NewScheduler(config, logger)
	processor := NewJobProcessor(config, evaluator, scheduler, logger)

	// Evaluations keep running after a shutdown signal until the deadline.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		processor.Start(workCtx)
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	err = gracefulShutdown(shutdownCtx, scheduler, processor, logger)
	cancelWork()
	wg.Wait()

	if err != nil {
		logger.WithError(err).Error("Worker shutdown failed")
		return err
	}
	logger.Info("Worker stopped successfully")
	return nil
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func gracefulShutdown(ctx context.Context, scheduler *Scheduler, processor *JobProcessor, logger *logrus.Logger) error {
	logger.Info("Starting graceful shutdown")

	// Stop accepting new jobs
	scheduler.Stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if processor.ActiveJobs() == 0 && len(scheduler.GetJobQueue()) == 0 {
			logger.Info("All jobs completed")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout exceeded with %d active jobs", processor.ActiveJobs())
		case <-ticker.C:
		}
	}
}
