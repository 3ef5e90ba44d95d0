package interfaces

import (
	"io"
	"iter"

	"github.com/inferloop/mia/pkg/models"
)

// SampleOptions controls Dataset.Sample
type SampleOptions struct {
	// N is the number of records to draw. Ignored when Fraction > 0.
	N int
	// Fraction of the dataset to draw, rounded down.
	Fraction float64
	// Seed for the draw. Zero draws a fresh seed.
	Seed uint64
	// Replace samples with replacement, allowing N > Len().
	Replace bool
}

// Dataset is a collection of records sharing one data description. Every
// operation that combines two datasets requires equal descriptions.
//
// Pure operations return a new dataset that shares no row storage with its
// inputs. Mutating operations carry an InPlace suffix and validate all their
// arguments before touching any state.
type Dataset interface {
	// Description returns the shared data description
	Description() *models.DataDescription

	// Len returns the number of records
	Len() int

	// Sample draws a random subset of records
	Sample(opts SampleOptions) (Dataset, error)

	// GetRecords returns the records at the given positions, in order
	GetRecords(ids []int) (Dataset, error)

	// DropRecords returns a copy without the records at ids. With no ids,
	// n distinct random records are dropped.
	DropRecords(ids []int, n int) (Dataset, error)

	// DropRecordsInPlace is the mutating form of DropRecords
	DropRecordsInPlace(ids []int, n int) error

	// AddRecords returns the concatenation of this dataset and records
	AddRecords(records Dataset) (Dataset, error)

	// AddRecordsInPlace appends records to this dataset
	AddRecordsInPlace(records Dataset) error

	// Replace drops len(recordsOut) records (or recordsIn.Len() random ones when
	// recordsOut is empty) and appends recordsIn
	Replace(recordsIn Dataset, recordsOut []int) (Dataset, error)

	// ReplaceInPlace is the mutating form of Replace
	ReplaceInPlace(recordsIn Dataset, recordsOut []int) error

	// CreateSubsets draws n datasets of exactly sampleSize records each
	CreateSubsets(n, sampleSize int, seed uint64) ([]Dataset, error)

	// Empty returns a zero-record dataset with the same description
	Empty() Dataset

	// Concat returns the rows of this dataset followed by the rows of other
	Concat(other Dataset) (Dataset, error)

	// Contains reports whether the single record of probe is value-equal to
	// any record of this dataset
	Contains(probe Dataset) (bool, error)

	// Equal reports whether both datasets hold the same rows in the same order
	Equal(other Dataset) bool

	// Records iterates over the records in storage order
	Records() iter.Seq[Record]

	// WriteCSV writes the rows as headerless, index-free CSV
	WriteCSV(w io.Writer) error
}

// Record is a dataset of exactly one row carrying the identifier it held in
// the dataset it was extracted from.
type Record interface {
	Dataset

	// ID returns the identifier
	ID() int

	// SetID overwrites the identifier
	SetID(id int)

	// GetID returns the position of the unique row of dataset that is
	// value-equal to this record
	GetID(dataset Dataset) (int, error)

	// Row returns a copy of the record's values
	Row() models.Row
}
