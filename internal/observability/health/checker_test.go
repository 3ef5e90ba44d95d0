package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerAllHealthy(t *testing.T) {
	c := NewChecker(time.Second, nil)
	c.Register(NewBasicCheck("storage", func(ctx context.Context) error { return nil }, true, 0))
	c.Register(NewBasicCheck("cache", func(ctx context.Context) error { return nil }, false, 0))

	report := c.Run(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "OK", report.Checks["storage"].Message)
}

func TestCheckerStatusAggregation(t *testing.T) {
	fail := func(ctx context.Context) error { return errors.New("down") }
	ok := func(ctx context.Context) error { return nil }

	tests := []struct {
		name     string
		checks   []*BasicCheck
		expected Status
		failures []string
	}{
		{
			name:     "no checks",
			expected: StatusHealthy,
		},
		{
			name:     "non-critical failure degrades",
			checks:   []*BasicCheck{NewBasicCheck("a", ok, true, 0), NewBasicCheck("b", fail, false, 0)},
			expected: StatusDegraded,
			failures: []string{"b"},
		},
		{
			name:     "critical failure",
			checks:   []*BasicCheck{NewBasicCheck("b", fail, false, 0), NewBasicCheck("a", fail, true, 0)},
			expected: StatusUnhealthy,
			failures: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second, nil)
			for _, check := range tt.checks {
				c.Register(check)
			}

			report := c.Run(context.Background())
			assert.Equal(t, tt.expected, report.Status)
			assert.Equal(t, tt.failures, report.Failures)
		})
	}
}

func TestCheckerTimeout(t *testing.T) {
	c := NewChecker(time.Second, nil)
	c.Register(NewBasicCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, true, 10*time.Millisecond))

	report := c.Run(context.Background())

	require.Contains(t, report.Checks, "slow")
	assert.Equal(t, StatusUnhealthy, report.Checks["slow"].Status)
	assert.Contains(t, report.Checks["slow"].Message, "deadline exceeded")
}

func TestCheckerRegisterReplaces(t *testing.T) {
	c := NewChecker(0, nil)
	c.Register(NewBasicCheck("x", func(ctx context.Context) error { return errors.New("old") }, true, 0))
	c.Register(NewBasicCheck("x", func(ctx context.Context) error { return nil }, true, 0))

	report := c.Run(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 1)
}
