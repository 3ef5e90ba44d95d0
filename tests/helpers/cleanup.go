package helpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// TestCleanup provides utilities for cleaning up test resources
type TestCleanup struct {
	t         *testing.T
	resources []CleanupResource
	mu        sync.Mutex
}

// CleanupResource represents a resource that needs cleanup
type CleanupResource interface {
	Cleanup() error
	String() string
}

// FileCleanup represents file system cleanup
type FileCleanup struct {
	paths []string
}

// RedisCleanup removes keys under a prefix
type RedisCleanup struct {
	client *redis.Client
	prefix string
}

// NewTestCleanup creates a new test cleanup helper
func NewTestCleanup(t *testing.T) *TestCleanup {
	tc := &TestCleanup{
		t:         t,
		resources: make([]CleanupResource, 0),
	}

	t.Cleanup(func() {
		tc.CleanupAll()
	})

	return tc
}

// AddResource adds a resource to be cleaned up
func (tc *TestCleanup) AddResource(resource CleanupResource) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.resources = append(tc.resources, resource)
}

// CleanupAll cleans up all registered resources in reverse order
func (tc *TestCleanup) CleanupAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var errs []string
	for i := len(tc.resources) - 1; i >= 0; i-- {
		resource := tc.resources[i]
		if err := resource.Cleanup(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to cleanup %s: %v", resource.String(), err))
		}
	}

	if len(errs) > 0 {
		tc.t.Errorf("cleanup errors: %s", strings.Join(errs, "; "))
	}

	tc.resources = tc.resources[:0]
}

// RegisterFileCleanup removes the given paths at test end
func (tc *TestCleanup) RegisterFileCleanup(paths ...string) {
	tc.AddResource(&FileCleanup{paths: paths})
}

// RegisterRedisCleanup removes every key under prefix at test end
func (tc *TestCleanup) RegisterRedisCleanup(client *redis.Client, prefix string) {
	tc.AddResource(&RedisCleanup{client: client, prefix: prefix})
}

// RedisTestClient connects to MIA_TEST_REDIS_ADDR or skips the test
func RedisTestClient(t *testing.T) *redis.Client {
	addr := os.Getenv("MIA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MIA_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func (fc *FileCleanup) Cleanup() error {
	var errs []string
	for _, path := range fc.paths {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("file cleanup errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (fc *FileCleanup) String() string {
	return fmt.Sprintf("FileCleanup(%s)", strings.Join(fc.paths, ", "))
}

func (rc *RedisCleanup) Cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
	var errs []string
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil && err != redis.Nil {
			errs = append(errs, fmt.Sprintf("failed to delete key %s: %v", iter.Val(), err))
		}
	}
	if err := iter.Err(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("redis cleanup errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (rc *RedisCleanup) String() string {
	return fmt.Sprintf("RedisCleanup(%s*)", rc.prefix)
}
