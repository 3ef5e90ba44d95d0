package features

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// Numeric maps a typed cell onto the real line. Categories become their
// position in the column's category list and times become Unix seconds.
// Free-text columns have no numeric form.
func Numeric(column models.Column, v models.Value) (float64, error) {
	switch v.Kind {
	case models.KindInt:
		return float64(v.Int), nil
	case models.KindFloat:
		return v.Float, nil
	case models.KindTime:
		return float64(v.Time.Unix()), nil
	case models.KindCategory:
		idx, ok := column.CategoryIndex(v.Str)
		if !ok {
			return 0, errors.WrapError(errors.ErrInvalidValue, errors.ErrorTypeValidation, errors.CodeInvalidInput,
				fmt.Sprintf("unknown category %q", v.Str))
		}
		return float64(idx), nil
	default:
		return 0, errors.WrapError(errors.ErrInvalidRepresentation, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			fmt.Sprintf("column %q of kind %s has no numeric form", column.Name, v.Kind))
	}
}

// Flatten converts a dataset into a row-major vector of Len()*columns values
func Flatten(dataset interfaces.Dataset) ([]float64, error) {
	desc := dataset.Description()
	out := make([]float64, 0, dataset.Len()*desc.NumColumns())
	for rec := range dataset.Records() {
		for col, v := range rec.Row() {
			x, err := Numeric(desc.Columns[col], v)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
	}
	return out, nil
}

// Flattener is the FeatureExtractor form of Flatten
type Flattener struct{}

// Extract implements interfaces.FeatureExtractor
func (Flattener) Extract(dataset interfaces.Dataset) ([]float64, error) {
	return Flatten(dataset)
}

// Matrix stacks one feature vector per dataset into rows. All vectors must
// have the same length.
func Matrix(extractor interfaces.FeatureExtractor, datasets []interfaces.Dataset) ([][]float64, error) {
	if len(datasets) == 0 {
		return nil, errors.NewPreconditionError(errors.ErrEmptyInput, "no datasets to extract features from")
	}
	rows := make([][]float64, len(datasets))
	for i, ds := range datasets {
		x, err := extractor.Extract(ds)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(x) != len(rows[0]) {
			return nil, errors.NewPreconditionError(errors.ErrLengthMismatch,
				"dataset %d has %d features, expected %d", i, len(x), len(rows[0]))
		}
		rows[i] = x
	}
	return rows, nil
}

// Dense is Matrix as a gonum matrix
func Dense(extractor interfaces.FeatureExtractor, datasets []interfaces.Dataset) (*mat.Dense, error) {
	rows, err := Matrix(extractor, datasets)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) == 0 {
		return nil, errors.NewPreconditionError(errors.ErrEmptyInput, "datasets produced empty feature vectors")
	}
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		x.SetRow(i, row)
	}
	return x, nil
}
