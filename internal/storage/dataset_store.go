package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// DatasetStore persists named datasets on a blob storage backend as a
// <name>.json description next to a headerless <name>.csv.
type DatasetStore struct {
	blobs   interfaces.BlobStorage
	logger  *logrus.Logger
	metrics *metrics.Collector
}

// NewDatasetStore wraps a blob storage backend
func NewDatasetStore(blobs interfaces.BlobStorage, logger *logrus.Logger, collector *metrics.Collector) *DatasetStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &DatasetStore{
		blobs:   blobs,
		logger:  logger,
		metrics: collector,
	}
}

// Backend returns the underlying blob storage
func (s *DatasetStore) Backend() interfaces.BlobStorage {
	return s.blobs
}

// Save writes the description and rows of t under name
func (s *DatasetStore) Save(ctx context.Context, name string, t *datasets.Tabular) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation(s.blobs.Type(), "save", err, time.Since(start)) }()

	if err := validateName(name); err != nil {
		return err
	}

	schema, err := json.MarshalIndent(t.Description(), "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to encode data description")
	}

	var data bytes.Buffer
	if err := t.WriteCSV(&data); err != nil {
		return err
	}

	if err := s.blobs.Put(ctx, name+constants.DescriptionExtension, bytes.NewReader(schema), int64(len(schema))); err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, name+constants.DataExtension, bytes.NewReader(data.Bytes()), int64(data.Len())); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"dataset": name,
		"records": t.Len(),
		"backend": s.blobs.Type(),
	}).Info("Saved dataset")

	return nil
}

// Load reads the dataset stored under name
func (s *DatasetStore) Load(ctx context.Context, name string, opts ...datasets.Option) (t *datasets.Tabular, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation(s.blobs.Type(), "load", err, time.Since(start)) }()

	if err := validateName(name); err != nil {
		return nil, err
	}

	schema, err := s.read(ctx, name+constants.DescriptionExtension)
	if err != nil {
		return nil, err
	}
	description, err := models.ParseDataDescription(schema)
	if err != nil {
		return nil, err
	}

	rc, err := s.blobs.Get(ctx, name+constants.DataExtension)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err = datasets.ReadCSV(rc, description, opts...)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"dataset": name,
		"records": t.Len(),
		"backend": s.blobs.Type(),
	}).Debug("Loaded dataset")

	return t, nil
}

// LoadDescription reads only the description stored under name
func (s *DatasetStore) LoadDescription(ctx context.Context, name string) (*models.DataDescription, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	schema, err := s.read(ctx, name+constants.DescriptionExtension)
	if err != nil {
		return nil, err
	}
	return models.ParseDataDescription(schema)
}

// List returns the names of all complete datasets under prefix, sorted
func (s *DatasetStore) List(ctx context.Context, prefix string) ([]string, error) {
	blobs, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]bool)
	data := make(map[string]bool)
	for _, blob := range blobs {
		switch {
		case strings.HasSuffix(blob.Key, constants.DescriptionExtension):
			schemas[strings.TrimSuffix(blob.Key, constants.DescriptionExtension)] = true
		case strings.HasSuffix(blob.Key, constants.DataExtension):
			data[strings.TrimSuffix(blob.Key, constants.DataExtension)] = true
		}
	}

	var names []string
	for name := range schemas {
		if data[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether both files of name are present
func (s *DatasetStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	for _, key := range []string{name + constants.DescriptionExtension, name + constants.DataExtension} {
		ok, err := s.blobs.Exists(ctx, key)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Delete removes both files of name
func (s *DatasetStore) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStorageOperation(s.blobs.Type(), "delete", err, time.Since(start)) }()

	if err := validateName(name); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, name+constants.DataExtension); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, name+constants.DescriptionExtension)
}

func (s *DatasetStore) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.WrapStorageError(err, s.blobs.Type(), "get", key)
	}
	return data, nil
}

func validateName(name string) error {
	if name == "" || strings.HasSuffix(name, "/") {
		return errors.NewValidationError(errors.CodeInvalidInput, fmt.Sprintf("invalid dataset name %q", name))
	}
	return nil
}
