package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
	"github.com/inferloop/mia/tests/helpers"
)

func TestFlatten(t *testing.T) {
	ds := helpers.TestDataset(t, 2)

	x, err := Flatten(ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 1000, 0, 21, 2000, 1}, x)
}

func TestFlattenTemporal(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(`[{"type": "interval", "representation": "date"}]`))
	require.NoError(t, err)
	ds, err := datasets.NewTabular(desc, []models.Row{{models.TimeValue(time.Unix(86400, 0).UTC())}})
	require.NoError(t, err)

	x, err := Flatten(ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{86400}, x)
}

func TestFlattenRejectsFreeText(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(`[{"type": "finite", "representation": "string"}]`))
	require.NoError(t, err)
	ds, err := datasets.NewTabular(desc, []models.Row{{models.StringValue("x")}})
	require.NoError(t, err)

	_, err = Flatten(ds)
	helpers.AssertErrorType(t, err, errors.ErrorTypeValidation)
}

func TestMatrixRequiresEqualLengths(t *testing.T) {
	_, err := Matrix(Flattener{}, []interfaces.Dataset{helpers.TestDataset(t, 2), helpers.TestDataset(t, 3)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrLengthMismatch))

	_, err = Matrix(Flattener{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyInput))

	rows, err := Matrix(Flattener{}, []interfaces.Dataset{helpers.TestDataset(t, 2), helpers.TestDataset(t, 2)})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNaiveFeatureSet(t *testing.T) {
	ds := helpers.TestDataset(t, 3)
	fs := NewNaiveFeatureSet(ds.Description())

	x, err := fs.Extract(ds)
	require.NoError(t, err)
	require.Len(t, x, fs.Size())

	// age: 20, 21, 22
	helpers.AssertFloatSliceEquals(t, []float64{21, 21, 2.0 / 3}, x[0:3], 1e-9)
	// income: 1000, 2000, 3000
	helpers.AssertFloatSliceEquals(t, []float64{2000, 2000, 2e6 / 3}, x[3:6], 1e-6)
	// sex: F, M, F
	helpers.AssertFloatSliceEquals(t, []float64{2.0 / 3, 1.0 / 3}, x[6:8], 1e-9)
}

func TestNaiveFeatureSetEmptyDataset(t *testing.T) {
	ds := helpers.TestDataset(t, 3)
	fs := NewNaiveFeatureSet(ds.Description())

	x, err := fs.Extract(ds.Empty())
	require.NoError(t, err)
	assert.Equal(t, make([]float64, fs.Size()), x)
}

func TestNaiveFeatureSetSchemaMismatch(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(`[{"type": "real", "representation": "number"}]`))
	require.NoError(t, err)

	_, err = NewNaiveFeatureSet(desc).Extract(helpers.TestDataset(t, 2))
	helpers.AssertErrorType(t, err, errors.ErrorTypeIncompatibility)
}
