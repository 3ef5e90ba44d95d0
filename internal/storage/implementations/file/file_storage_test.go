package file

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/pkg/errors"
)

func newTestStorage(t *testing.T) *FileStorage {
	storage, err := NewFileStorage(&FileStorageConfig{
		BasePath:   t.TempDir(),
		CreateDirs: true,
	}, logrus.New())
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestNewFileStorageInvalidConfig(t *testing.T) {
	_, err := NewFileStorage(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FileStorageConfig cannot be nil")

	_, err = NewFileStorage(&FileStorageConfig{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BasePath is required")
}

func TestFileStoragePutGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	content := "20,1000,F\n"
	require.NoError(t, storage.Put(ctx, "datasets/adult.csv", strings.NewReader(content), int64(len(content))))

	exists, err := storage.Exists(ctx, "datasets/adult.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := storage.Get(ctx, "datasets/adult.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFileStoragePutSizeMismatch(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.Put(context.Background(), "short.csv", strings.NewReader("abc"), 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeStorage, errors.TypeOf(err))

	exists, err := storage.Exists(context.Background(), "short.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStorageGetMissing(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.Get(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataNotFound))
}

func TestFileStorageDelete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "a.json", strings.NewReader("{}"), -1))
	require.NoError(t, storage.Delete(ctx, "a.json"))

	exists, err := storage.Exists(ctx, "a.json")
	require.NoError(t, err)
	assert.False(t, exists)

	err = storage.Delete(ctx, "a.json")
	assert.True(t, errors.Is(err, errors.ErrDataNotFound))
}

func TestFileStorageList(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"b/2.csv", "a/1.csv", "a/1.json", "c.csv"} {
		require.NoError(t, storage.Put(ctx, key, strings.NewReader("x"), 1))
	}

	blobs, err := storage.List(ctx, "a/")
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	assert.Equal(t, "a/1.csv", blobs[0].Key)
	assert.Equal(t, "a/1.json", blobs[1].Key)
	assert.Equal(t, int64(1), blobs[0].Size)

	all, err := storage.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFileStorageRejectsEscapingKeys(t *testing.T) {
	storage := newTestStorage(t)

	for _, key := range []string{"", "../outside.csv", "a/../../outside.csv"} {
		err := storage.Put(context.Background(), key, strings.NewReader("x"), 1)
		require.Error(t, err, key)
		assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err), key)
	}
}

func TestFileStorageClosed(t *testing.T) {
	storage := newTestStorage(t)
	require.NoError(t, storage.Close())
	require.NoError(t, storage.Close())

	err := storage.Put(context.Background(), "a.csv", strings.NewReader("x"), 1)
	require.Error(t, err)

	_, err = storage.Exists(context.Background(), "a.csv")
	require.Error(t, err)
}
