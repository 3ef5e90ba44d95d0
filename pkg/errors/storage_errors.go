package errors

import (
	"fmt"
	"time"
)

// StorageError represents a storage-specific error with additional context
type StorageError struct {
	*AppError
	StorageType string        `json:"storage_type,omitempty"` // "file", "s3", "redis"
	Bucket      string        `json:"bucket,omitempty"`
	Key         string        `json:"key,omitempty"`
	Operation   string        `json:"operation,omitempty"` // "put", "get", "delete", "list"
	Duration    time.Duration `json:"duration,omitempty"`
}

// WrapStorageError wraps a backend error with the operation and key it failed on
func WrapStorageError(err error, storageType, operation, key string) *StorageError {
	if err == nil {
		return nil
	}

	code := CodeStorageError
	sentinel := ErrStorageReadFailed
	switch operation {
	case "put", "delete":
		code = CodeWriteFailed
		sentinel = ErrStorageWriteFailed
	case "get", "list", "exists":
		code = CodeReadFailed
	}

	return &StorageError{
		AppError: WrapError(fmt.Errorf("%w: %v", sentinel, err), ErrorTypeStorage, code,
			fmt.Sprintf("%s %s failed for key %q", storageType, operation, key)),
		StorageType: storageType,
		Key:         key,
		Operation:   operation,
	}
}

// NewObjectNotFoundError reports a missing blob
func NewObjectNotFoundError(storageType, key string) *StorageError {
	appErr := WrapError(ErrDataNotFound, ErrorTypeStorage, CodeDataNotFound,
		fmt.Sprintf("object %q not found in %s storage", key, storageType))
	appErr.HTTPStatus = 404
	return &StorageError{
		AppError:    appErr,
		StorageType: storageType,
		Key:         key,
		Operation:   "get",
	}
}
