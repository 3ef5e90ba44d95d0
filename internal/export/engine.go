package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/pkg/errors"
)

// ExportFormat names an output encoding
type ExportFormat string

const (
	FormatJSON      ExportFormat = "json"
	FormatJSONLines ExportFormat = "jsonl"
	FormatCSV       ExportFormat = "csv"
	FormatText      ExportFormat = "text"
)

// ExportOptions contains options shared by all exporters
type ExportOptions struct {
	// Pretty indents JSON output
	Pretty bool `json:"pretty"`
	// IncludeHeaders writes a CSV header row
	IncludeHeaders bool `json:"include_headers"`
	// IncludeSamples writes one row per test sample instead of one per run
	IncludeSamples bool `json:"include_samples"`
	// Precision is the number of decimals for CSV and text floats
	Precision int `json:"precision"`
}

// DefaultExportOptions returns the options the CLI uses
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Pretty:         true,
		IncludeHeaders: true,
		Precision:      4,
	}
}

// Exporter writes evaluation results in one or more formats
type Exporter interface {
	Name() string
	SupportedFormats() []ExportFormat
	Export(ctx context.Context, writer io.Writer, results []*evaluation.Result, options ExportOptions) error
}

// ExportEngine dispatches results to the exporter registered for a format
type ExportEngine struct {
	logger    *logrus.Logger
	mu        sync.RWMutex
	exporters map[ExportFormat]Exporter
}

// NewExportEngine creates an engine with every built-in exporter
func NewExportEngine(logger *logrus.Logger) *ExportEngine {
	if logger == nil {
		logger = logrus.New()
	}
	ee := &ExportEngine{
		logger:    logger,
		exporters: make(map[ExportFormat]Exporter),
	}
	ee.RegisterExporter(&JSONExporter{})
	ee.RegisterExporter(&JSONLinesExporter{})
	ee.RegisterExporter(&CSVExporter{})
	ee.RegisterExporter(&TextExporter{})
	return ee
}

// RegisterExporter registers exporter for every format it supports
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()

	for _, format := range exporter.SupportedFormats() {
		ee.exporters[format] = exporter
	}
	ee.logger.WithField("exporter", exporter.Name()).Debug("Registered exporter")
}

// SupportedFormats lists the registered formats in order
func (ee *ExportEngine) SupportedFormats() []ExportFormat {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	formats := make([]ExportFormat, 0, len(ee.exporters))
	for format := range ee.exporters {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Export writes results to writer in the given format
func (ee *ExportEngine) Export(ctx context.Context, format ExportFormat, writer io.Writer, results []*evaluation.Result, options ExportOptions) error {
	ee.mu.RLock()
	exporter, ok := ee.exporters[format]
	ee.mu.RUnlock()

	if !ok {
		return errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("unsupported export format %q, expected one of %v", format, ee.SupportedFormats()))
	}
	if options.Precision < 0 {
		return errors.NewValidationError(errors.CodeInvalidInput, "precision must not be negative")
	}

	if err := exporter.Export(ctx, writer, results, options); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeWriteFailed, "failed to export results")
	}
	return nil
}
