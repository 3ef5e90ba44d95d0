package datasets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/models"
	"github.com/inferloop/mia/tests/helpers"
)

func TestRecordIdentityRoundTrip(t *testing.T) {
	ds := helpers.TestDataset(t, 6)

	for i := 0; i < ds.Len(); i++ {
		single, err := ds.GetRecords([]int{i})
		require.NoError(t, err)

		rec, err := datasets.RecordFromDataset(single)
		require.NoError(t, err)
		assert.Equal(t, i, rec.ID())

		id, err := rec.GetID(ds)
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}
}

func TestRecordFromDatasetKeepsOriginalIndex(t *testing.T) {
	ds := helpers.TestDataset(t, 6)
	dropped, err := ds.DropRecords([]int{0, 1}, 0)
	require.NoError(t, err)

	single, err := dropped.GetRecords([]int{0})
	require.NoError(t, err)
	rec, err := datasets.RecordFromDataset(single)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.ID())

	pos, err := rec.GetID(dropped)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestRecordFromDatasetRequiresSingleRow(t *testing.T) {
	_, err := datasets.RecordFromDataset(helpers.TestDataset(t, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotSingleRow))

	_, err = datasets.RecordFromDataset(helpers.TestDataset(t, 0))
	require.Error(t, err)
}

func TestRecordGetIDNotFound(t *testing.T) {
	ds := helpers.TestDataset(t, 3)
	rec, err := datasets.NewRecord(helpers.TestDescription(t), helpers.TestRow(10), 10)
	require.NoError(t, err)

	_, err = rec.GetID(ds)
	helpers.AssertErrorType(t, err, errors.ErrorTypeLookup)
	assert.True(t, errors.Is(err, errors.ErrRecordNotFound))
}

func TestRecordGetIDDuplicates(t *testing.T) {
	desc := helpers.TestDescription(t)
	dup := helpers.TestRow(1)
	ds, err := datasets.NewTabular(desc, []models.Row{helpers.TestRow(0), dup, dup})
	require.NoError(t, err)

	// the row key singles out the copy the record was taken from
	single, err := ds.GetRecords([]int{2})
	require.NoError(t, err)
	rec, err := datasets.RecordFromDataset(single)
	require.NoError(t, err)
	pos, err := rec.GetID(ds)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	// a freshly built record matches both copies by value only
	stranger, err := datasets.NewRecord(desc, dup, 0)
	require.NoError(t, err)
	_, err = stranger.GetID(ds)
	helpers.AssertErrorType(t, err, errors.ErrorTypeAmbiguity)
	assert.True(t, errors.Is(err, errors.ErrAmbiguousRecord))

	// concatenation keeps keys, so both copies share the key
	doubled, err := ds.Concat(single)
	require.NoError(t, err)
	_, err = rec.GetID(doubled)
	helpers.AssertErrorType(t, err, errors.ErrorTypeAmbiguity)
}

func TestRecordSetID(t *testing.T) {
	rec, err := datasets.NewRecord(helpers.TestDescription(t), helpers.TestRow(0), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.ID())

	rec.SetID(42)
	assert.Equal(t, 42, rec.ID())
	assert.Equal(t, []int{42}, rec.Index())
}

func TestRecordIsValueCopy(t *testing.T) {
	ds := helpers.TestDataset(t, 3)
	single, err := ds.GetRecords([]int{1})
	require.NoError(t, err)
	rec, err := datasets.RecordFromDataset(single)
	require.NoError(t, err)

	require.NoError(t, ds.DropRecordsInPlace([]int{1}, 0))
	assert.True(t, helpers.TestRow(1).Equal(rec.Row()))
	assert.Equal(t, 1, rec.Len())
	assert.NotEqual(t, rec.Key().String(), "")
}

func TestRecordIsADataset(t *testing.T) {
	ds := helpers.TestDataset(t, 3)
	rec, err := datasets.NewRecord(helpers.TestDescription(t), helpers.TestRow(1), 1)
	require.NoError(t, err)

	ok, err := ds.Contains(rec)
	require.NoError(t, err)
	assert.True(t, ok)

	sum, err := ds.Concat(rec)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Len())
}
