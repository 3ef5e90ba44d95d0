package datasets_test

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/models"
	"github.com/inferloop/mia/tests/helpers"
)

const temporalDescriptionJSON = `[
	{"type": "interval", "representation": "date"},
	{"type": "interval", "representation": "datetime"},
	{"type": "real", "representation": "number"},
	{"type": "finite", "representation": "string"}
]`

func TestCSVRoundTrip(t *testing.T) {
	ds := helpers.TestDataset(t, 4)

	text, err := datasets.WriteCSVString(ds)
	require.NoError(t, err)
	assert.Equal(t, "20,1000,F\n21,2000,M\n22,3000,F\n23,4000,M\n", text)

	back, err := datasets.ReadCSVString(text, ds.Description())
	require.NoError(t, err)
	assert.True(t, ds.Equal(back))
}

func TestCSVTemporalColumns(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(temporalDescriptionJSON))
	require.NoError(t, err)

	ds, err := datasets.ReadCSVString("2021-03-04,2021-03-04 10:11:12,,\"a, b\"\n", desc)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	row, err := ds.Row(0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), row[0].Time)
	assert.Equal(t, time.Date(2021, 3, 4, 10, 11, 12, 0, time.UTC), row[1].Time)
	assert.True(t, math.IsNaN(row[2].Float))
	assert.Equal(t, "a, b", row[3].Str)

	text, err := datasets.WriteCSVString(ds)
	require.NoError(t, err)
	back, err := datasets.ReadCSVString(text, desc)
	require.NoError(t, err)
	assert.True(t, ds.Equal(back))
}

func TestCSVTemporalPrecision(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(temporalDescriptionJSON))
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"fractional seconds", "2021-03-04 10:11:12.5", time.Date(2021, 3, 4, 10, 11, 12, 5e8, time.UTC)},
		{"nanoseconds", "2021-03-04T10:11:12.123456789Z", time.Date(2021, 3, 4, 10, 11, 12, 123456789, time.UTC)},
		{"zone offset", "2021-03-04T10:11:12+02:00", time.Date(2021, 3, 4, 8, 11, 12, 0, time.UTC)},
		{"offset with space", "2021-03-04 10:11:12.25-05:00", time.Date(2021, 3, 4, 15, 11, 12, 25e7, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := datasets.ReadCSVString("2021-03-04,"+tt.input+",1.5,x\n", desc)
			require.NoError(t, err)

			row, err := ds.Row(0)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(row[1].Time), "got %v", row[1].Time)

			text, err := datasets.WriteCSVString(ds)
			require.NoError(t, err)
			back, err := datasets.ReadCSVString(text, desc)
			require.NoError(t, err)
			assert.True(t, ds.Equal(back), "written as %q", text)
		})
	}
}

func TestCSVDateKeepsCalendarDay(t *testing.T) {
	desc, err := models.ParseDataDescription([]byte(temporalDescriptionJSON))
	require.NoError(t, err)

	ds, err := datasets.ReadCSVString("2021-03-04T23:30:00-05:00,2021-03-04 10:11:12,1,x\n", desc)
	require.NoError(t, err)
	row, err := ds.Row(0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), row[0].Time)

	text, err := datasets.WriteCSVString(ds)
	require.NoError(t, err)
	back, err := datasets.ReadCSVString(text, desc)
	require.NoError(t, err)
	assert.True(t, ds.Equal(back))
}

func TestCSVSingleColumnMissingValues(t *testing.T) {
	floats, err := models.ParseDataDescription([]byte(`[{"type": "real", "representation": "number"}]`))
	require.NoError(t, err)
	strs, err := models.ParseDataDescription([]byte(`[{"type": "finite", "representation": "string"}]`))
	require.NoError(t, err)

	tests := []struct {
		name string
		desc *models.DataDescription
		rows []models.Row
	}{
		{"float", floats, []models.Row{{models.FloatValue(1)}, {models.FloatValue(math.NaN())}, {models.FloatValue(3)}}},
		{"string", strs, []models.Row{{models.StringValue("a")}, {models.StringValue("")}, {models.StringValue("c")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := datasets.NewTabular(tt.desc, tt.rows)
			require.NoError(t, err)

			text, err := datasets.WriteCSVString(ds)
			require.NoError(t, err)
			back, err := datasets.ReadCSVString(text, tt.desc)
			require.NoError(t, err)

			require.Equal(t, 3, back.Len(), "written as %q", text)
			assert.True(t, ds.Equal(back))
		})
	}
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	desc := helpers.TestDescription(t)

	_, err := datasets.ReadCSVString("20,1000\n", desc)
	helpers.AssertErrorType(t, err, errors.ErrorTypeValidation)

	_, err = datasets.ReadCSVString("twenty,1000,F\n", desc)
	helpers.AssertErrorType(t, err, errors.ErrorTypeValidation)

	_, err = datasets.ReadCSVString("20,1000,X\n", desc)
	require.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	env := helpers.NewTestEnvironment(t)
	ds := env.Dataset(5)
	path := filepath.Join(env.Config.TempDir, "adult")

	require.NoError(t, datasets.Save(ds, path))
	helpers.AssertFileExists(t, path+".json", "countable")
	helpers.AssertFileExists(t, path+".csv", "20,1000,F")

	loaded, err := datasets.Load(path)
	require.NoError(t, err)
	assert.True(t, ds.Equal(loaded))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, loaded.Index())

	_, err = datasets.Load(filepath.Join(env.Config.TempDir, "missing"))
	helpers.AssertErrorType(t, err, errors.ErrorTypeStorage)
}
