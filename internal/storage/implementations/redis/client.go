package redis

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

const (
	fieldData     = "data"
	fieldModified = "modified"
	fieldSize     = "size"
	scanCount     = 100
)

// RedisConfig holds configuration for Redis storage
type RedisConfig struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	Password     string        `json:"password" mapstructure:"password"`
	DB           int           `json:"db" mapstructure:"db"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" mapstructure:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`
	IdleTimeout  time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	TTL          time.Duration `json:"ttl" mapstructure:"ttl"`
	KeyPrefix    string        `json:"key_prefix" mapstructure:"key_prefix"`
}

// RedisStorage implements interfaces.BlobStorage on Redis. Each blob is a
// hash holding the payload with its size and modification time.
type RedisStorage struct {
	config *RedisConfig
	client redis.UniversalClient
	logger *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(config *RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis config cannot be nil")
	}

	if config.Addr == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis address is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = constants.DefaultRedisPrefix
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &RedisStorage{
		config: config,
		logger: logger,
	}, nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string, logger *logrus.Logger) *RedisStorage {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStorage{
		config: &RedisConfig{KeyPrefix: keyPrefix},
		client: client,
		logger: logger,
	}
}

// Connect establishes connection to Redis
func (r *RedisStorage) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         r.config.Addr,
		Password:     r.config.Password,
		DB:           r.config.DB,
		DialTimeout:  r.config.DialTimeout,
		ReadTimeout:  r.config.ReadTimeout,
		WriteTimeout: r.config.WriteTimeout,
		PoolSize:     r.config.PoolSize,
		MinIdleConns: r.config.MinIdleConns,
		MaxRetries:   r.config.MaxRetries,
		IdleTimeout:  r.config.IdleTimeout,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, "CONNECTION_FAILED", "Failed to connect to Redis")
	}

	r.client = client
	r.closed = false

	r.logger.WithFields(logrus.Fields{
		"addr": r.config.Addr,
		"db":   r.config.DB,
	}).Info("Connected to Redis")

	return nil
}

// Type returns the backend name
func (r *RedisStorage) Type() string {
	return constants.StorageTypeRedis
}

// Put stores data under key
func (r *RedisStorage) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ready(); err != nil {
		return err
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return errors.WrapStorageError(err, r.Type(), "put", key)
	}

	redisKey := r.redisKey(key)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey, fieldData, payload, fieldSize, len(payload), fieldModified, time.Now().UnixNano())
		if r.config.TTL > 0 {
			pipe.Expire(ctx, redisKey, r.config.TTL)
		}
		return nil
	})
	if err != nil {
		return errors.WrapStorageError(err, r.Type(), "put", key)
	}

	r.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": len(payload),
	}).Debug("Stored blob in Redis")

	return nil
}

// Get returns the blob stored under key
func (r *RedisStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ready(); err != nil {
		return nil, err
	}

	data, err := r.client.HGet(ctx, r.redisKey(key), fieldData).Bytes()
	if err == redis.Nil {
		return nil, errors.NewObjectNotFoundError(r.Type(), key)
	}
	if err != nil {
		return nil, errors.WrapStorageError(err, r.Type(), "get", key)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether key holds a blob
func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ready(); err != nil {
		return false, err
	}

	n, err := r.client.Exists(ctx, r.redisKey(key)).Result()
	if err != nil {
		return false, errors.WrapStorageError(err, r.Type(), "exists", key)
	}
	return n > 0, nil
}

// Delete removes the blob stored under key
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ready(); err != nil {
		return err
	}

	n, err := r.client.Del(ctx, r.redisKey(key)).Result()
	if err != nil {
		return errors.WrapStorageError(err, r.Type(), "delete", key)
	}
	if n == 0 {
		return errors.NewObjectNotFoundError(r.Type(), key)
	}
	return nil
}

// List returns all blobs whose key starts with prefix
func (r *RedisStorage) List(ctx context.Context, prefix string) ([]*interfaces.BlobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ready(); err != nil {
		return nil, err
	}

	var blobs []*interfaces.BlobInfo
	iter := r.client.Scan(ctx, 0, escapePattern(r.redisKey(prefix))+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()

		size, err := r.client.HGet(ctx, redisKey, fieldSize).Int64()
		if err != nil && err != redis.Nil {
			return nil, errors.WrapStorageError(err, r.Type(), "list", prefix)
		}
		modified, err := r.client.HGet(ctx, redisKey, fieldModified).Int64()
		if err != nil && err != redis.Nil {
			return nil, errors.WrapStorageError(err, r.Type(), "list", prefix)
		}

		blobs = append(blobs, &interfaces.BlobInfo{
			Key:          strings.TrimPrefix(redisKey, r.config.KeyPrefix),
			Size:         size,
			LastModified: time.Unix(0, modified),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.WrapStorageError(err, r.Type(), "list", prefix)
	}

	return blobs, nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, "CLOSE_FAILED", "Failed to close Redis connection")
		}
	}

	r.logger.Info("Redis connection closed")
	return nil
}

func (r *RedisStorage) ready() error {
	if r.closed || r.client == nil {
		return errors.NewStorageError("NOT_CONNECTED", "Redis not connected")
	}
	return nil
}

func (r *RedisStorage) redisKey(key string) string {
	return r.config.KeyPrefix + key
}

// escapePattern quotes glob metacharacters for SCAN MATCH
func escapePattern(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
