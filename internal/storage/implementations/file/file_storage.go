package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// FileStorageConfig contains configuration for file-based storage
type FileStorageConfig struct {
	BasePath   string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`
	CreateDirs bool   `json:"create_dirs" yaml:"create_dirs" mapstructure:"create_dirs"`
	SyncWrites bool   `json:"sync_writes" yaml:"sync_writes" mapstructure:"sync_writes"`
}

// FileStorage implements interfaces.BlobStorage on a local directory. Keys
// are slash-separated paths relative to BasePath.
type FileStorage struct {
	config *FileStorageConfig
	logger *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

// NewFileStorage creates a new file storage instance
func NewFileStorage(config *FileStorageConfig, logger *logrus.Logger) (*FileStorage, error) {
	if config == nil {
		return nil, errors.NewValidationError("INVALID_CONFIG", "FileStorageConfig cannot be nil")
	}

	if config.BasePath == "" {
		return nil, errors.NewValidationError("INVALID_CONFIG", "BasePath is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	if config.CreateDirs {
		if err := os.MkdirAll(config.BasePath, 0755); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, "DIRECTORY_CREATION_FAILED",
				fmt.Sprintf("Failed to create directory: %s", config.BasePath))
		}
	}

	info, err := os.Stat(config.BasePath)
	if err != nil {
		return nil, errors.NewStorageError("PATH_NOT_FOUND", fmt.Sprintf("Base path does not exist: %s", config.BasePath))
	}
	if !info.IsDir() {
		return nil, errors.NewStorageError("PATH_NOT_DIRECTORY", fmt.Sprintf("Base path is not a directory: %s", config.BasePath))
	}

	return &FileStorage{
		config: config,
		logger: logger,
	}, nil
}

// Type returns the backend name
func (fs *FileStorage) Type() string {
	return constants.StorageTypeFile
}

// Put writes data to key, replacing any existing blob. The file is written
// to a temporary name first so readers never see a partial blob.
func (fs *FileStorage) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	path, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapStorageError(err, fs.Type(), "put", key)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return errors.NewStorageError("NOT_CONNECTED", "file storage is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapStorageError(err, fs.Type(), "put", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.WrapStorageError(err, fs.Type(), "put", key)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, data)
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("wrote %d bytes, expected %d", written, size)
	}
	if err == nil && fs.config.SyncWrites {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return errors.WrapStorageError(err, fs.Type(), "put", key)
	}

	fs.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": written,
	}).Debug("Wrote blob to file storage")

	return nil
}

// Get opens the blob stored under key
func (fs *FileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.closed {
		return nil, errors.NewStorageError("NOT_CONNECTED", "file storage is closed")
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewObjectNotFoundError(fs.Type(), key)
	}
	if err != nil {
		return nil, errors.WrapStorageError(err, fs.Type(), "get", key)
	}
	return f, nil
}

// Exists reports whether key holds a blob
func (fs *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if fs.closed {
		return false, errors.NewStorageError("NOT_CONNECTED", "file storage is closed")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.WrapStorageError(err, fs.Type(), "exists", key)
	}
	return !info.IsDir(), nil
}

// Delete removes the blob stored under key
func (fs *FileStorage) Delete(ctx context.Context, key string) error {
	path, err := fs.resolve(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NewObjectNotFoundError(fs.Type(), key)
		}
		return errors.WrapStorageError(err, fs.Type(), "delete", key)
	}

	fs.logger.WithField("key", key).Debug("Deleted blob from file storage")
	return nil
}

// List returns all blobs whose key starts with prefix, sorted by key
func (fs *FileStorage) List(ctx context.Context, prefix string) ([]*interfaces.BlobInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var blobs []*interfaces.BlobInfo
	err := filepath.WalkDir(fs.config.BasePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(fs.config.BasePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, &interfaces.BlobInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.WrapStorageError(err, fs.Type(), "list", prefix)
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Key < blobs[j].Key })
	return blobs, nil
}

// Close marks the storage closed
func (fs *FileStorage) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true
	fs.logger.WithField("closed_at", time.Now()).Debug("File storage closed")
	return nil
}

// resolve maps key onto a path below BasePath
func (fs *FileStorage) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.NewValidationError("INVALID_KEY", "key cannot be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.NewValidationError("INVALID_KEY", fmt.Sprintf("key %q escapes the storage root", key))
	}
	return filepath.Join(fs.config.BasePath, clean), nil
}
