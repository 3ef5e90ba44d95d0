package export

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inferloop/mia/internal/evaluation"
)

// TextExporter writes a human readable report per result
type TextExporter struct{}

func (te *TextExporter) Name() string {
	return "text"
}

func (te *TextExporter) SupportedFormats() []ExportFormat {
	return []ExportFormat{FormatText}
}

func (te *TextExporter) Export(ctx context.Context, writer io.Writer, results []*evaluation.Result, options ExportOptions) error {
	for i, r := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(writer); err != nil {
				return err
			}
		}
		if err := te.write(writer, r, options.Precision); err != nil {
			return err
		}
	}
	return nil
}

func (te *TextExporter) write(w io.Writer, r *evaluation.Result, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	lines := [][2]string{
		{"Run", r.RunID},
		{"Attack", r.Attack},
		{"Dataset", r.Dataset},
		{"Generator", r.Generator},
		{"Feature set", r.FeatureSet},
		{"Target", fmt.Sprint(r.TargetID)},
		{"Test samples", fmt.Sprint(len(r.Labels))},
		{"Accuracy", formatFloat(r.Accuracy, precision)},
		{"True positive rate", formatFloat(r.TruePositiveRate, precision)},
		{"False positive rate", formatFloat(r.FalsePositiveRate, precision)},
		{"Advantage", formatFloat(r.Advantage, precision)},
		{"Mean score", formatFloat(r.MeanScore, precision)},
		{"Training time", r.TrainingDuration.String()},
		{"Test time", r.TestDuration.String()},
	}
	for _, line := range lines {
		if line[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s:\t%s\n", line[0], line[1])
	}
	return tw.Flush()
}
