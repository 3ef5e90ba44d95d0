package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/inferloop/mia/internal/evaluation"
)

var summaryHeaders = []string{
	"run_id", "attack", "dataset", "generator", "feature_set", "target_id",
	"samples", "accuracy", "true_positive_rate", "false_positive_rate",
	"advantage", "mean_score", "training_seconds", "test_seconds",
}

var sampleHeaders = []string{"run_id", "target_id", "sample", "label", "guess", "score"}

// CSVExporter writes one row per result, or one row per test sample with
// IncludeSamples
type CSVExporter struct{}

func (ce *CSVExporter) Name() string {
	return "csv"
}

func (ce *CSVExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV}
}

func (ce *CSVExporter) Export(ctx context.Context, writer io.Writer, results []*evaluation.Result, options ExportOptions) error {
	csvWriter := csv.NewWriter(writer)

	if options.IncludeHeaders {
		headers := summaryHeaders
		if options.IncludeSamples {
			headers = sampleHeaders
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range results {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var rows [][]string
		if options.IncludeSamples {
			rows = ce.sampleRows(r, options.Precision)
		} else {
			rows = [][]string{ce.summaryRow(r, options.Precision)}
		}
		if err := csvWriter.WriteAll(rows); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (ce *CSVExporter) summaryRow(r *evaluation.Result, precision int) []string {
	return []string{
		r.RunID,
		r.Attack,
		r.Dataset,
		r.Generator,
		r.FeatureSet,
		strconv.Itoa(r.TargetID),
		strconv.Itoa(len(r.Labels)),
		formatFloat(r.Accuracy, precision),
		formatFloat(r.TruePositiveRate, precision),
		formatFloat(r.FalsePositiveRate, precision),
		formatFloat(r.Advantage, precision),
		formatFloat(r.MeanScore, precision),
		formatSeconds(r.TrainingDuration),
		formatSeconds(r.TestDuration),
	}
}

func (ce *CSVExporter) sampleRows(r *evaluation.Result, precision int) [][]string {
	rows := make([][]string, len(r.Labels))
	for i := range r.Labels {
		row := []string{r.RunID, strconv.Itoa(r.TargetID), strconv.Itoa(i), strconv.Itoa(r.Labels[i]), "", ""}
		if i < len(r.Guesses) {
			row[4] = strconv.Itoa(r.Guesses[i])
		}
		if i < len(r.Scores) {
			row[5] = formatFloat(r.Scores[i], precision)
		}
		rows[i] = row
	}
	return rows
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
