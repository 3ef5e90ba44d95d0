package redis

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/tests/helpers"
)

func TestNewRedisStorage(t *testing.T) {
	config := &RedisConfig{Addr: "localhost:6379"}

	storage, err := NewRedisStorage(config, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultRedisPrefix, config.KeyPrefix)
	assert.Equal(t, constants.StorageTypeRedis, storage.Type())
}

func TestNewRedisStorageInvalidConfig(t *testing.T) {
	_, err := NewRedisStorage(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis config cannot be nil")

	_, err = NewRedisStorage(&RedisConfig{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis address is required")
}

func TestRedisStorageNotConnected(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{Addr: "localhost:6379"}, logrus.New())
	require.NoError(t, err)

	_, err = storage.Get(context.Background(), "a.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis not connected")
}

func TestRedisStorageGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	storage := NewRedisStorageWithClient(client, "mia:", logrus.New())

	mock.ExpectHGet("mia:adult.csv", fieldData).SetVal("20,1000,F\n")
	mock.ExpectHGet("mia:missing.csv", fieldData).RedisNil()

	rc, err := storage.Get(context.Background(), "adult.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "20,1000,F\n", string(data))

	_, err = storage.Get(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, errors.ErrDataNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorageExistsAndDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	storage := NewRedisStorageWithClient(client, "mia:", logrus.New())
	ctx := context.Background()

	mock.ExpectExists("mia:adult.csv").SetVal(1)
	mock.ExpectDel("mia:adult.csv").SetVal(1)
	mock.ExpectDel("mia:adult.csv").SetVal(0)

	exists, err := storage.Exists(ctx, "adult.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, storage.Delete(ctx, "adult.csv"))

	err = storage.Delete(ctx, "adult.csv")
	assert.True(t, errors.Is(err, errors.ErrDataNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStorageList(t *testing.T) {
	client, mock := redismock.NewClientMock()
	storage := NewRedisStorageWithClient(client, "mia:", logrus.New())
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectScan(0, "mia:adult*", scanCount).SetVal([]string{"mia:adult.csv"}, 0)
	mock.ExpectHGet("mia:adult.csv", fieldSize).SetVal("10")
	mock.ExpectHGet("mia:adult.csv", fieldModified).SetVal("1709294400000000000")

	blobs, err := storage.List(context.Background(), "adult")
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "adult.csv", blobs[0].Key)
	assert.Equal(t, int64(10), blobs[0].Size)
	assert.True(t, modified.Equal(blobs[0].LastModified))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `mia:a\*b\?c\[d\]`, escapePattern("mia:a*b?c[d]"))
}

func TestRedisStorageRoundTrip(t *testing.T) {
	helpers.SkipIfShort(t)
	client := helpers.RedisTestClient(t)

	prefix := "mia-test:" + t.Name() + ":"
	cleanup := helpers.NewTestCleanup(t)
	cleanup.RegisterRedisCleanup(client, prefix)

	storage := NewRedisStorageWithClient(client, prefix, logrus.New())
	ctx := context.Background()

	content := "20,1000,F\n21,2000,M\n"
	require.NoError(t, storage.Put(ctx, "adult.csv", strings.NewReader(content), int64(len(content))))

	rc, err := storage.Get(ctx, "adult.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	blobs, err := storage.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, int64(len(content)), blobs[0].Size)

	require.NoError(t, storage.Delete(ctx, "adult.csv"))
}
