package features

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// NaiveFeatureSet summarises each column independently: mean, median and
// variance for numeric and temporal columns, and relative frequency of
// every category for categorical columns. Free-text columns are skipped.
type NaiveFeatureSet struct {
	description *models.DataDescription
}

// NewNaiveFeatureSet creates a feature set for datasets of the given description
func NewNaiveFeatureSet(description *models.DataDescription) *NaiveFeatureSet {
	return &NaiveFeatureSet{description: description}
}

// Size returns the length of the vectors produced by Extract
func (f *NaiveFeatureSet) Size() int {
	n := 0
	for _, col := range f.description.Columns {
		switch col.Kind() {
		case models.KindCategory:
			n += len(col.Representation.Categories)
		case models.KindInt, models.KindFloat, models.KindTime:
			n += 3
		}
	}
	return n
}

// Extract implements interfaces.FeatureExtractor
func (f *NaiveFeatureSet) Extract(dataset interfaces.Dataset) ([]float64, error) {
	if !f.description.Equal(dataset.Description()) {
		return nil, errors.NewIncompatibilityError("feature set and dataset have different data descriptions")
	}

	columns := make([][]float64, f.description.NumColumns())
	for rec := range dataset.Records() {
		for col, v := range rec.Row() {
			if v.Kind == models.KindString {
				continue
			}
			x, err := Numeric(f.description.Columns[col], v)
			if err != nil {
				return nil, err
			}
			columns[col] = append(columns[col], x)
		}
	}

	out := make([]float64, 0, f.Size())
	for i, col := range f.description.Columns {
		values := columns[i]
		switch col.Kind() {
		case models.KindCategory:
			out = append(out, frequencies(values, len(col.Representation.Categories))...)
		case models.KindInt, models.KindFloat, models.KindTime:
			out = append(out, summary(values)...)
		}
	}
	return out, nil
}

func frequencies(values []float64, n int) []float64 {
	out := make([]float64, n)
	if len(values) == 0 {
		return out
	}
	for _, v := range values {
		out[int(v)]++
	}
	for i := range out {
		out[i] /= float64(len(values))
	}
	return out
}

// summary returns mean, median and population variance. An empty column
// summarises to zeros.
func summary(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{0, 0, 0}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return []float64{mean, median, variance}
}
