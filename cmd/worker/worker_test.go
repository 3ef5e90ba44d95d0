package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/internal/server"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/internal/storage/implementations/file"
	"github.com/inferloop/mia/tests/helpers"
)

type workerEnv struct {
	*helpers.TestEnvironment
	queue     *jobs.Queue
	config    *WorkerConfig
	scheduler *Scheduler
	processor *JobProcessor
}

func newWorkerEnv(t *testing.T, retries int) *workerEnv {
	env := helpers.NewTestEnvironment(t)
	logger := helpers.GetTestLogger(t)

	blobs, err := file.NewFileStorage(&file.FileStorageConfig{BasePath: env.Config.TempDir}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	store := storage.NewDatasetStore(blobs, logger, nil)
	require.NoError(t, store.Save(env.Context, "census", helpers.RandomDataset(t, 30, 50000, 3)))

	factory := generators.NewFactory(logger, nil)
	evaluator := evaluation.NewEvaluator(nil, store, factory, logger, nil)
	queue := jobs.NewQueue(retries, time.Minute, logger)

	srv, err := server.NewServer(server.DefaultConfig(), server.NewHandlers(evaluator, store, factory, queue, logger), nil, logger)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	config := &WorkerConfig{
		WorkerID:     "worker-1",
		ServerURL:    ts.URL,
		Concurrency:  2,
		PollInterval: 20 * time.Millisecond,
	}
	scheduler := NewScheduler(config, logger)

	return &workerEnv{
		TestEnvironment: env,
		queue:           queue,
		config:          config,
		scheduler:       scheduler,
		processor:       NewJobProcessor(config, evaluator, scheduler, logger),
	}
}

func smallRequest(dataset string, target int) evaluation.Request {
	return evaluation.Request{
		Dataset:            dataset,
		TargetID:           target,
		TrainingSize:       10,
		SyntheticSize:      10,
		NumTrainingSamples: 6,
		NumTestSamples:     4,
		Seed:               5,
	}
}

func TestProcessJobCompletes(t *testing.T) {
	env := newWorkerEnv(t, 0)

	job, err := env.queue.Submit(smallRequest("census", 0))
	require.NoError(t, err)

	env.scheduler.pollJobs(env.Context)
	require.Len(t, env.scheduler.GetJobQueue(), 1)

	claimed := <-env.scheduler.GetJobQueue()
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, "worker-1", claimed.WorkerID)

	env.processor.processJob(env.Context, claimed, 0)

	got, err := env.queue.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Len(t, got.Result.Labels, 4)
	assert.Equal(t, "census", got.Result.Dataset)

	assert.Equal(t, int64(1), env.processor.CompletedJobs())
	assert.Equal(t, int64(0), env.processor.FailedJobs())
	assert.Equal(t, int32(0), env.processor.ActiveJobs())
}

func TestProcessJobFails(t *testing.T) {
	env := newWorkerEnv(t, 0)

	job, err := env.queue.Submit(smallRequest("missing", 0))
	require.NoError(t, err)

	env.scheduler.pollJobs(env.Context)
	env.processor.processJob(env.Context, <-env.scheduler.GetJobQueue(), 0)

	got, err := env.queue.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "missing")
	assert.Equal(t, int64(1), env.processor.FailedJobs())
}

func TestHeartbeatRenewsLease(t *testing.T) {
	env := newWorkerEnv(t, 0)
	env.config.Heartbeat = 10 * time.Millisecond

	job, err := env.queue.Submit(smallRequest("census", 0))
	require.NoError(t, err)
	env.scheduler.pollJobs(env.Context)
	claimed := <-env.scheduler.GetJobQueue()
	first := claimed.LeaseExpiresAt
	require.False(t, first.IsZero())

	stop := env.processor.heartbeat(env.Context, job.ID, env.Logger.WithField("jobID", job.ID))
	env.WaitForCondition(func() bool {
		got, err := env.queue.Get(job.ID)
		return err == nil && got.LeaseExpiresAt.After(first)
	}, 2*time.Second, "lease was never renewed")
	stop()

	got, err := env.queue.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, got.Status)
	assert.Equal(t, "worker-1", got.WorkerID)
}

func TestPollRespectsQueueCapacity(t *testing.T) {
	env := newWorkerEnv(t, 0)

	for i := 0; i < 3; i++ {
		_, err := env.queue.Submit(smallRequest("census", i))
		require.NoError(t, err)
	}

	env.scheduler.pollJobs(env.Context)
	assert.Len(t, env.scheduler.GetJobQueue(), env.config.Concurrency)
	assert.Len(t, env.queue.List(jobs.StatusPending), 1)

	env.scheduler.pollJobs(env.Context)
	assert.Len(t, env.queue.List(jobs.StatusPending), 1, "a full queue claims nothing")
}

func TestSchedulerAndProcessorLoop(t *testing.T) {
	env := newWorkerEnv(t, 0)

	for i := 0; i < 3; i++ {
		_, err := env.queue.Submit(smallRequest("census", i))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(env.Context)
	defer cancel()

	done := make(chan struct{})
	go env.scheduler.Start(ctx)
	go func() {
		env.processor.Start(ctx)
		close(done)
	}()

	env.WaitForCondition(func() bool {
		return env.queue.Stats()[jobs.StatusCompleted] == 3
	}, 20*time.Second, "all jobs completed")

	require.NoError(t, gracefulShutdown(ctx, env.scheduler, env.processor, helpers.GetTestLogger(t)))
	<-done

	assert.Equal(t, int64(3), env.processor.CompletedJobs())

	// Stop is idempotent
	env.scheduler.Stop()
}

func TestLoadConfig(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse([]string{"--worker-id", "w9", "--concurrency", "3"}))

	config, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, "w9", config.WorkerID)
	assert.Equal(t, 3, config.Concurrency)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, "http://localhost:8080", config.ServerURL)
	assert.Equal(t, "file", config.Storage.Type)
	require.NotNil(t, config.Evaluation.Classifier)

	flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse([]string{"--concurrency", "0"}))
	_, err = loadConfig(flags)
	assert.Error(t, err)
}
