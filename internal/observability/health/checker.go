package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the health of one check or of the whole service
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one dependency
type Check interface {
	Name() string
	Check(ctx context.Context) error
	Critical() bool
	Timeout() time.Duration
}

// Result is the outcome of one check
type Result struct {
	Status   Status        `json:"status"`
	Message  string        `json:"message"`
	Critical bool          `json:"critical"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates all check results. A failing critical check makes the
// service unhealthy; any other failure only degrades it.
type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Result `json:"checks,omitempty"`
	Failures  []string          `json:"failures,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker runs registered checks on demand
type Checker struct {
	logger         *logrus.Logger
	defaultTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker creates a checker. Checks without their own timeout use
// defaultTimeout.
func NewChecker(defaultTimeout time.Duration, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	return &Checker{
		logger:         logger,
		defaultTimeout: defaultTimeout,
		checks:         make(map[string]Check),
	}
}

// Register adds or replaces a check
func (c *Checker) Register(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[check.Name()] = check
	c.logger.WithField("check", check.Name()).Debug("Registered health check")
}

// Run executes every check concurrently
func (c *Checker) Run(ctx context.Context) *Report {
	c.mu.RLock()
	checks := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.execute(ctx, check)
		}()
	}
	wg.Wait()

	report := &Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Result, len(checks)),
		CheckedAt: time.Now().UTC(),
	}
	for i, check := range checks {
		result := results[i]
		report.Checks[check.Name()] = result
		if result.Status == StatusHealthy {
			continue
		}
		report.Failures = append(report.Failures, check.Name())
		if result.Critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	sort.Strings(report.Failures)

	return report
}

func (c *Checker) execute(ctx context.Context, check Check) Result {
	timeout := check.Timeout()
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(checkCtx)
	result := Result{
		Status:   StatusHealthy,
		Message:  "OK",
		Critical: check.Critical(),
		Duration: time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		c.logger.WithFields(logrus.Fields{
			"check":    check.Name(),
			"critical": result.Critical,
		}).WithError(err).Warn("Health check failed")
	}
	return result
}

// BasicCheck adapts a function to Check
type BasicCheck struct {
	name      string
	checkFunc func(ctx context.Context) error
	critical  bool
	timeout   time.Duration
}

// NewBasicCheck creates a check from a function
func NewBasicCheck(name string, checkFunc func(ctx context.Context) error, critical bool, timeout time.Duration) *BasicCheck {
	return &BasicCheck{
		name:      name,
		checkFunc: checkFunc,
		critical:  critical,
		timeout:   timeout,
	}
}

func (b *BasicCheck) Name() string {
	return b.name
}

func (b *BasicCheck) Check(ctx context.Context) error {
	if err := b.checkFunc(ctx); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return nil
}

func (b *BasicCheck) Critical() bool {
	return b.critical
}

func (b *BasicCheck) Timeout() time.Duration {
	return b.timeout
}
