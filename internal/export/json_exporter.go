package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/inferloop/mia/internal/evaluation"
)

// JSONExporter writes a single result as an object and several as an array
type JSONExporter struct{}

func (je *JSONExporter) Name() string {
	return "json"
}

func (je *JSONExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSON}
}

func (je *JSONExporter) Export(ctx context.Context, writer io.Writer, results []*evaluation.Result, options ExportOptions) error {
	encoder := json.NewEncoder(writer)
	if options.Pretty {
		encoder.SetIndent("", "  ")
	}

	if len(results) == 1 {
		return encoder.Encode(results[0])
	}
	if results == nil {
		results = []*evaluation.Result{}
	}
	return encoder.Encode(results)
}

// JSONLinesExporter writes one compact object per result
type JSONLinesExporter struct{}

func (jle *JSONLinesExporter) Name() string {
	return "jsonl"
}

func (jle *JSONLinesExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatJSONLines}
}

func (jle *JSONLinesExporter) Export(ctx context.Context, writer io.Writer, results []*evaluation.Result, options ExportOptions) error {
	encoder := json.NewEncoder(writer)
	for _, result := range results {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := encoder.Encode(result); err != nil {
			return err
		}
	}
	return nil
}
