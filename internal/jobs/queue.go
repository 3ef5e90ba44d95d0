// Package jobs queues evaluation requests for asynchronous workers.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/pkg/errors"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one queued evaluation
type Job struct {
	ID        string             `json:"id"`
	Status    Status             `json:"status"`
	Request   evaluation.Request `json:"request"`
	Result    *evaluation.Result `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	WorkerID  string             `json:"worker_id,omitempty"`
	Attempts  int                `json:"attempts"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	// LeaseExpiresAt is when a running job returns to the queue unless its
	// worker reports first. Zero when the job is not leased.
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
}

// StatusUpdate is what a worker reports for a claimed job. A running update
// is a heartbeat and renews the lease.
type StatusUpdate struct {
	WorkerID string             `json:"worker_id"`
	Status   Status             `json:"status"`
	Result   *evaluation.Result `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Queue is an in-memory FIFO of jobs. Claimed jobs stay visible through Get
// and List until the queue is dropped.
type Queue struct {
	logger       *logrus.Logger
	maxRetries   int
	leaseTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	jobs    map[string]*Job
	pending []string
}

// NewQueue creates an empty queue. A failed job is requeued until it has
// been attempted maxRetries+1 times. A running job whose worker stays silent
// for leaseTimeout counts as failed; a zero leaseTimeout disables leases.
func NewQueue(maxRetries int, leaseTimeout time.Duration, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.New()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if leaseTimeout < 0 {
		leaseTimeout = 0
	}
	return &Queue{
		logger:       logger,
		maxRetries:   maxRetries,
		leaseTimeout: leaseTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		jobs:         make(map[string]*Job),
	}
}

// Submit validates req and appends a pending job
func (q *Queue) Submit(req evaluation.Request) (*Job, error) {
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Dataset == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "dataset is required")
	}

	now := q.now()
	job := &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"dataset": req.Dataset,
		"target":  req.TargetID,
	}).Info("Job submitted")

	return job.clone(), nil
}

// Get returns a snapshot of the job
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLeases()

	job, ok := q.jobs[id]
	if !ok {
		return nil, errors.NewLookupError(errors.ErrJobNotFound, "job %s not found", id)
	}
	return job.clone(), nil
}

// List returns snapshots of all jobs, optionally filtered by status, oldest first
func (q *Queue) List(status Status) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLeases()

	jobs := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if status == "" || job.Status == status {
			jobs = append(jobs, job.clone())
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Claim hands up to limit pending jobs to workerID and marks them running
func (q *Queue) Claim(workerID string, limit int) ([]*Job, error) {
	if workerID == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "worker id is required")
	}
	if limit <= 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "limit must be positive")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLeases()

	n := min(limit, len(q.pending))
	claimed := make([]*Job, 0, n)
	now := q.now()
	for _, id := range q.pending[:n] {
		job := q.jobs[id]
		job.Status = StatusRunning
		job.WorkerID = workerID
		job.Attempts++
		job.UpdatedAt = now
		q.renewLease(job, now)
		claimed = append(claimed, job.clone())
	}
	q.pending = q.pending[n:]

	if n > 0 {
		q.logger.WithFields(logrus.Fields{
			"worker_id": workerID,
			"count":     n,
		}).Debug("Jobs claimed")
	}
	return claimed, nil
}

// Update applies a worker's report to a running job. A failure is requeued
// while retries remain.
func (q *Queue) Update(id string, update StatusUpdate) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLeases()

	job, ok := q.jobs[id]
	if !ok {
		return nil, errors.NewLookupError(errors.ErrJobNotFound, "job %s not found", id)
	}
	if job.Status != StatusRunning {
		return nil, errors.NewPreconditionError(errors.ErrInvalidTransition,
			"job %s is %s, not running", id, job.Status)
	}
	if update.WorkerID == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "worker id is required")
	}
	if update.WorkerID != job.WorkerID {
		return nil, errors.NewPreconditionError(errors.ErrInvalidTransition,
			"job %s is claimed by %s, not %s", id, job.WorkerID, update.WorkerID)
	}

	now := q.now()
	switch update.Status {
	case StatusRunning:
		q.renewLease(job, now)
	case StatusCompleted:
		if update.Result == nil {
			return nil, errors.NewValidationError(errors.CodeInvalidInput, "a completed job needs a result")
		}
		job.Status = StatusCompleted
		job.Result = update.Result
		job.Error = ""
		job.LeaseExpiresAt = time.Time{}
	case StatusFailed:
		q.fail(job, update.Error)
	default:
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "unknown job status: "+string(update.Status))
	}

	job.UpdatedAt = now
	return job.clone(), nil
}

// fail requeues job while retries remain and marks it failed otherwise
func (q *Queue) fail(job *Job, reason string) {
	job.Error = reason
	job.LeaseExpiresAt = time.Time{}
	if job.Attempts <= q.maxRetries {
		job.Status = StatusPending
		job.WorkerID = ""
		q.pending = append(q.pending, job.ID)
		q.logger.WithField("job_id", job.ID).WithField("attempts", job.Attempts).Warn("Job failed, requeued")
		return
	}
	job.Status = StatusFailed
	q.logger.WithField("job_id", job.ID).WithField("error", reason).Error("Job failed")
}

func (q *Queue) renewLease(job *Job, now time.Time) {
	if q.leaseTimeout > 0 {
		job.LeaseExpiresAt = now.Add(q.leaseTimeout)
	}
}

// expireLeases fails running jobs whose lease has run out, oldest first.
// The caller holds q.mu.
func (q *Queue) expireLeases() {
	if q.leaseTimeout == 0 {
		return
	}
	now := q.now()
	var expired []*Job
	for _, job := range q.jobs {
		if job.Status == StatusRunning && !job.LeaseExpiresAt.IsZero() && now.After(job.LeaseExpiresAt) {
			expired = append(expired, job)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	for _, job := range expired {
		q.logger.WithFields(logrus.Fields{
			"job_id":    job.ID,
			"worker_id": job.WorkerID,
		}).Warn("Job lease expired")
		q.fail(job, "lease expired: worker "+job.WorkerID+" stopped reporting")
		job.UpdatedAt = now
	}
}

// Stats counts jobs per status
func (q *Queue) Stats() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLeases()

	stats := make(map[Status]int)
	for _, job := range q.jobs {
		stats[job.Status]++
	}
	return stats
}

func (j *Job) clone() *Job {
	c := *j
	return &c
}
