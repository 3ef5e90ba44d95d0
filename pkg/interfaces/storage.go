package interfaces

import (
	"context"
	"io"
	"time"
)

// BlobStorage defines the interface for blob/object storage operations
type BlobStorage interface {
	// Type returns the backend name ("file", "s3", "redis")
	Type() string

	// Put stores a blob with the given key
	Put(ctx context.Context, key string, data io.Reader, size int64) error

	// Get retrieves a blob by key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if a blob exists
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a blob by key
	Delete(ctx context.Context, key string) error

	// List lists blobs with optional prefix filter
	List(ctx context.Context, prefix string) ([]*BlobInfo, error)

	// Close releases backend resources
	Close() error
}

// BlobInfo contains information about a blob
type BlobInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
