package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/pkg/constants"
)

// Scheduler polls the server for pending jobs and feeds the job queue
type Scheduler struct {
	config   *WorkerConfig
	logger   *logrus.Logger
	jobQueue chan *jobs.Job
	client   *http.Client
	mu       sync.RWMutex
	running  bool
}

func NewScheduler(config *WorkerConfig, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		config:   config,
		logger:   logger,
		jobQueue: make(chan *jobs.Job, config.Concurrency),
		running:  true,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Scheduler started")

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping due to context cancellation")
			return
		case <-ticker.C:
			if !s.isRunning() {
				s.logger.Info("Scheduler stopped")
				return
			}
			s.pollJobs(ctx)
		}
	}
}

// Stop closes the job queue. Workers drain what is already queued.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.jobQueue)
	s.logger.Info("Scheduler stop requested")
}

func (s *Scheduler) GetJobQueue() <-chan *jobs.Job {
	return s.jobQueue
}

func (s *Scheduler) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollJobs(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return
	}

	free := cap(s.jobQueue) - len(s.jobQueue)
	if free <= 0 {
		s.logger.Debug("Job queue is full, skipping poll")
		return
	}

	claimed, err := s.fetchPendingJobs(ctx, free)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch pending jobs")
		return
	}

	for _, job := range claimed {
		select {
		case s.jobQueue <- job:
			s.logger.WithFields(logrus.Fields{
				"jobID":   job.ID,
				"dataset": job.Request.Dataset,
			}).Debug("Job queued")
		default:
			// Only reachable if the server returned more than requested.
			s.logger.WithField("jobID", job.ID).Warn("Job queue is full, reporting job as failed")
			s.UpdateJobStatus(ctx, job.ID, jobs.StatusUpdate{Status: jobs.StatusFailed, Error: "worker queue full"})
		}
	}

	if len(claimed) > 0 {
		s.logger.WithField("count", len(claimed)).Info("Jobs fetched and queued")
	}
}

func (s *Scheduler) fetchPendingJobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	query := url.Values{}
	query.Set("worker_id", s.config.WorkerID)
	query.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s%s/worker/jobs?%s", s.config.ServerURL, constants.APIPrefix, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var claimed []*jobs.Job
	if err := json.NewDecoder(resp.Body).Decode(&claimed); err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateJobStatus reports the outcome of a claimed job
func (s *Scheduler) UpdateJobStatus(ctx context.Context, jobID string, update jobs.StatusUpdate) error {
	update.WorkerID = s.config.WorkerID

	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s%s/worker/jobs/%s/status", s.config.ServerURL, constants.APIPrefix, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set(constants.HeaderContentType, constants.MimeTypeJSON)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{
		"jobID":  jobID,
		"status": update.Status,
	}).Debug("Job status updated")

	return nil
}
