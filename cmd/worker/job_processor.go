package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/jobs"
)

// JobProcessor runs claimed evaluations on a fixed pool of goroutines
type JobProcessor struct {
	config        *WorkerConfig
	logger        *logrus.Logger
	evaluator     *evaluation.Evaluator
	scheduler     *Scheduler
	activeJobs    int32
	completedJobs int64
	failedJobs    int64
	wg            sync.WaitGroup
}

func NewJobProcessor(config *WorkerConfig, evaluator *evaluation.Evaluator, scheduler *Scheduler, logger *logrus.Logger) *JobProcessor {
	return &JobProcessor{
		config:    config,
		logger:    logger,
		evaluator: evaluator,
		scheduler: scheduler,
	}
}

// Start blocks until the job queue is closed or ctx is done
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.logger.Info("Job processor started")

	for i := 0; i < jp.config.Concurrency; i++ {
		jp.wg.Add(1)
		go jp.worker(ctx, i)
	}

	jp.wg.Wait()
	jp.logger.Info("All workers stopped")
}

func (jp *JobProcessor) worker(ctx context.Context, workerID int) {
	defer jp.wg.Done()

	jp.logger.WithField("workerID", workerID).Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			jp.logger.WithField("workerID", workerID).Debug("Worker stopping")
			return
		case job, ok := <-jp.scheduler.GetJobQueue():
			if !ok {
				jp.logger.WithField("workerID", workerID).Debug("Job queue closed, worker stopping")
				return
			}
			jp.processJob(ctx, job, workerID)
		}
	}
}

func (jp *JobProcessor) processJob(ctx context.Context, job *jobs.Job, workerID int) {
	atomic.AddInt32(&jp.activeJobs, 1)
	defer atomic.AddInt32(&jp.activeJobs, -1)

	startTime := time.Now()
	logger := jp.logger.WithFields(logrus.Fields{
		"jobID":    job.ID,
		"dataset":  job.Request.Dataset,
		"target":   job.Request.TargetID,
		"workerID": workerID,
	})

	logger.Info("Processing job")

	stopHeartbeat := jp.heartbeat(ctx, job.ID, logger)
	result, err := jp.evaluator.Evaluate(ctx, job.Request)
	stopHeartbeat()
	duration := time.Since(startTime)

	update := jobs.StatusUpdate{Status: jobs.StatusCompleted, Result: result}
	if err != nil {
		atomic.AddInt64(&jp.failedJobs, 1)
		logger.WithError(err).WithField("duration", duration).Error("Job failed")
		update = jobs.StatusUpdate{Status: jobs.StatusFailed, Error: err.Error()}
	} else {
		atomic.AddInt64(&jp.completedJobs, 1)
		logger.WithFields(logrus.Fields{
			"duration":  duration,
			"advantage": result.Advantage,
		}).Info("Job completed successfully")
	}

	// Report even if ctx was cancelled mid-run so the server can requeue.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if updateErr := jp.scheduler.UpdateJobStatus(reportCtx, job.ID, update); updateErr != nil {
		logger.WithError(updateErr).Error("Failed to update job status")
	}
}

// heartbeat renews the job's lease on the server until the returned stop
// function is called
func (jp *JobProcessor) heartbeat(ctx context.Context, jobID string, logger *logrus.Entry) func() {
	if jp.config.Heartbeat <= 0 {
		return func() {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(jp.config.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := jp.scheduler.UpdateJobStatus(hbCtx, jobID, jobs.StatusUpdate{Status: jobs.StatusRunning}); err != nil {
					logger.WithError(err).Warn("Heartbeat failed")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (jp *JobProcessor) ActiveJobs() int32 {
	return atomic.LoadInt32(&jp.activeJobs)
}

func (jp *JobProcessor) CompletedJobs() int64 {
	return atomic.LoadInt64(&jp.completedJobs)
}

func (jp *JobProcessor) FailedJobs() int64 {
	return atomic.LoadInt64(&jp.failedJobs)
}
