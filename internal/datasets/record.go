package datasets

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// Record is a tabular dataset of exactly one row. Its identifier is the
// index label the row held in the dataset it came from.
type Record struct {
	*Tabular
	id int
}

// NewRecord builds a standalone record with the given identifier
func NewRecord(description *models.DataDescription, values models.Row, id int) (*Record, error) {
	t, err := NewTabular(description, []models.Row{values})
	if err != nil {
		return nil, err
	}
	t.rows[0].index = id
	return &Record{Tabular: t, id: id}, nil
}

// RecordFromDataset converts a length-1 dataset into a record, keeping the
// row's identity and index label
func RecordFromDataset(d interfaces.Dataset) (*Record, error) {
	t, ok := asTabular(d)
	if !ok {
		return nil, errors.NewPreconditionError(errors.ErrUnsupportedProbe, "cannot build a record from %T", d)
	}
	if t.Len() != 1 {
		return nil, errors.NewPreconditionError(errors.ErrNotSingleRow,
			"a record must contain exactly one row, got %d", t.Len())
	}
	r := t.rows[0].clone()
	return &Record{Tabular: t.derive([]row{r}), id: r.index}, nil
}

// ID returns the record identifier
func (r *Record) ID() int {
	return r.id
}

// SetID overwrites the identifier. The index label of the row follows.
func (r *Record) SetID(id int) {
	r.id = id
	if len(r.rows) == 1 {
		r.rows[0].index = id
	}
}

// Key returns the identity key of the underlying row
func (r *Record) Key() uuid.UUID {
	if len(r.rows) == 0 {
		return uuid.Nil
	}
	return r.rows[0].key
}

// Row returns a copy of the record's values
func (r *Record) Row() models.Row {
	if len(r.rows) == 0 {
		return nil
	}
	return r.rows[0].values.Clone()
}

// GetID returns the position of the row of dataset that is value-equal to
// this record. When several rows match, the one sharing the record's identity
// key wins; if that still does not single out one row the lookup is ambiguous.
func (r *Record) GetID(dataset interfaces.Dataset) (int, error) {
	t, ok := asTabular(dataset)
	if !ok {
		return 0, errors.NewPreconditionError(errors.ErrUnsupportedProbe, "cannot look up a record in %T", dataset)
	}
	if len(r.rows) != 1 {
		return 0, errors.NewPreconditionError(errors.ErrNotSingleRow, "record holds %d rows", len(r.rows))
	}
	if !r.description.Equal(t.description) {
		return 0, errors.NewIncompatibilityError("record and dataset have different data descriptions")
	}

	target := r.rows[0]
	var matches []int
	for i, candidate := range t.rows {
		if candidate.values.Equal(target.values) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return 0, errors.NewLookupError(errors.ErrRecordNotFound, "record %d not found in dataset", r.id)
	case 1:
		return matches[0], nil
	}

	var keyed []int
	for _, m := range matches {
		if t.rows[m].key == target.key {
			keyed = append(keyed, m)
		}
	}
	if len(keyed) == 1 {
		return keyed[0], nil
	}
	return 0, errors.NewAmbiguityError("record %d matches %d rows of the dataset", r.id, len(matches)).
		WithContext("positions", matches)
}

// String summarises the record for logs
func (r *Record) String() string {
	return fmt.Sprintf("Record(id=%d, %s)", r.id, r.Row())
}
