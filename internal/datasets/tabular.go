package datasets

import (
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// row is one stored record. index is the label the row was given when it
// entered its first dataset and follows it through every derived dataset;
// key is a stable unique identity used to disambiguate duplicate rows.
type row struct {
	key    uuid.UUID
	index  int
	values models.Row
}

func (r row) clone() row {
	return row{key: r.key, index: r.index, values: r.values.Clone()}
}

// Tabular is the tabular Dataset: an ordered multiset of typed rows that
// share a data description.
type Tabular struct {
	description *models.DataDescription
	rows        []row
	rng         *rand.Rand
}

// Option configures a Tabular dataset
type Option func(*Tabular)

// WithSeed makes random record selection (DropRecords and Replace without
// explicit ids) reproducible
func WithSeed(seed uint64) Option {
	return func(t *Tabular) {
		t.rng = newRand(seed)
	}
}

// NewTabular builds a dataset from rows. Every row is validated against the
// description, labelled with its position, and given a fresh identity key.
func NewTabular(description *models.DataDescription, rows []models.Row, opts ...Option) (*Tabular, error) {
	if description == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidSchema, "data description cannot be nil")
	}

	t := &Tabular{
		description: description,
		rows:        make([]row, len(rows)),
	}
	for i, values := range rows {
		if err := description.ValidateRow(values); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, fmt.Sprintf("invalid row %d", i))
		}
		t.rows[i] = row{key: uuid.New(), index: i, values: values.Clone()}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Description returns the shared data description
func (t *Tabular) Description() *models.DataDescription {
	return t.description
}

// Len returns the number of records
func (t *Tabular) Len() int {
	return len(t.rows)
}

// Row returns a copy of the values at position i
func (t *Tabular) Row(i int) (models.Row, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, t.outOfRange(i)
	}
	return t.rows[i].values.Clone(), nil
}

// Rows returns a copy of every row in storage order
func (t *Tabular) Rows() []models.Row {
	out := make([]models.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.values.Clone()
	}
	return out
}

// Index returns the index label of every row in storage order
func (t *Tabular) Index() []int {
	out := make([]int, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.index
	}
	return out
}

// ResetIndex returns a copy whose index labels are the row positions
func (t *Tabular) ResetIndex() *Tabular {
	out := t.take(allPositions(len(t.rows)))
	for i := range out.rows {
		out.rows[i].index = i
	}
	return out
}

// Sample draws a random subset of records into a new dataset
func (t *Tabular) Sample(opts interfaces.SampleOptions) (interfaces.Dataset, error) {
	n := opts.N
	if opts.Fraction > 0 {
		n = int(opts.Fraction * float64(len(t.rows)))
	}
	if n < 0 {
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge, "cannot sample %d records", n)
	}

	rng := newRand(opts.Seed)
	positions := make([]int, n)
	switch {
	case opts.Replace:
		if n > 0 && len(t.rows) == 0 {
			return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge, "cannot sample from an empty dataset")
		}
		for i := range positions {
			positions[i] = rng.IntN(len(t.rows))
		}
	case n > len(t.rows):
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge,
			"cannot sample %d records without replacement from %d", n, len(t.rows))
	case n > 0:
		sampleuv.WithoutReplacement(positions, len(t.rows), rng)
	}

	return t.take(positions), nil
}

// GetRecords returns the records at the given positions, order preserved
func (t *Tabular) GetRecords(ids []int) (interfaces.Dataset, error) {
	for _, id := range ids {
		if id < 0 || id >= len(t.rows) {
			return nil, t.outOfRange(id)
		}
	}
	return t.take(ids), nil
}

// DropRecords returns a copy without the records at ids. With no ids, n
// distinct random records are dropped.
func (t *Tabular) DropRecords(ids []int, n int) (interfaces.Dataset, error) {
	positions, err := t.dropPositions(ids, n)
	if err != nil {
		return nil, err
	}
	return t.without(positions), nil
}

// DropRecordsInPlace removes the records at ids, or n random records
func (t *Tabular) DropRecordsInPlace(ids []int, n int) error {
	positions, err := t.dropPositions(ids, n)
	if err != nil {
		return err
	}
	t.rows = t.without(positions).rows
	return nil
}

// AddRecords returns the concatenation of t and records
func (t *Tabular) AddRecords(records interfaces.Dataset) (interfaces.Dataset, error) {
	return t.Concat(records)
}

// AddRecordsInPlace appends the records to t
func (t *Tabular) AddRecordsInPlace(records interfaces.Dataset) error {
	other, err := t.compatible(records)
	if err != nil {
		return err
	}
	t.rows = append(t.rows, cloneRows(other.rows)...)
	return nil
}

// Replace drops len(recordsOut) records (recordsIn.Len() random ones when
// recordsOut is empty) and appends recordsIn
func (t *Tabular) Replace(recordsIn interfaces.Dataset, recordsOut []int) (interfaces.Dataset, error) {
	in, positions, err := t.replacePlan(recordsIn, recordsOut)
	if err != nil {
		return nil, err
	}
	out := t.without(positions)
	out.rows = append(out.rows, cloneRows(in.rows)...)
	return out, nil
}

// ReplaceInPlace is the mutating form of Replace
func (t *Tabular) ReplaceInPlace(recordsIn interfaces.Dataset, recordsOut []int) error {
	in, positions, err := t.replacePlan(recordsIn, recordsOut)
	if err != nil {
		return err
	}
	rows := t.without(positions).rows
	t.rows = append(rows, cloneRows(in.rows)...)
	return nil
}

// CreateSubsets draws n datasets of exactly sampleSize records each
func (t *Tabular) CreateSubsets(n, sampleSize int, seed uint64) ([]interfaces.Dataset, error) {
	splits, err := IndexSplit(len(t.rows), sampleSize, n, newRand(seed))
	if err != nil {
		return nil, err
	}

	subsets := make([]interfaces.Dataset, len(splits))
	for i, split := range splits {
		subsets[i] = t.take(split)
	}
	return subsets, nil
}

// Empty returns a zero-record dataset with the same description
func (t *Tabular) Empty() interfaces.Dataset {
	return t.derive(nil)
}

// Concat returns the rows of t followed by the rows of other. Duplicates are kept.
func (t *Tabular) Concat(other interfaces.Dataset) (interfaces.Dataset, error) {
	o, err := t.compatible(other)
	if err != nil {
		return nil, err
	}
	rows := make([]row, 0, len(t.rows)+len(o.rows))
	rows = append(rows, cloneRows(t.rows)...)
	rows = append(rows, cloneRows(o.rows)...)
	return t.derive(rows), nil
}

// Contains reports whether the single row of probe is value-equal to any
// row of t. Index labels and identity keys are ignored.
func (t *Tabular) Contains(probe interfaces.Dataset) (bool, error) {
	p, ok := asTabular(probe)
	if !ok {
		return false, errors.NewPreconditionError(errors.ErrUnsupportedProbe,
			"only tabular datasets can be checked for containment, not %T", probe)
	}
	if p.Len() != 1 {
		return false, errors.NewPreconditionError(errors.ErrNotSingleRow,
			"only length-1 datasets can be checked for containment, got length %d", p.Len())
	}
	if !t.description.Equal(p.description) {
		return false, errors.NewIncompatibilityError("containment probe has a different data description")
	}

	target := p.rows[0].values
	for _, r := range t.rows {
		if r.values.Equal(target) {
			return true, nil
		}
	}
	return false, nil
}

// Equal reports whether other holds the same rows in the same order
func (t *Tabular) Equal(other interfaces.Dataset) bool {
	o, ok := asTabular(other)
	if !ok || !t.description.Equal(o.description) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.rows {
		if !t.rows[i].values.Equal(o.rows[i].values) {
			return false
		}
	}
	return true
}

// Records iterates over the records in storage order. Each record is a
// copy carrying the row's index label as its identifier.
func (t *Tabular) Records() iter.Seq[interfaces.Record] {
	return func(yield func(interfaces.Record) bool) {
		for _, r := range t.rows {
			rec := &Record{Tabular: t.derive([]row{r.clone()}), id: r.index}
			if !yield(rec) {
				return
			}
		}
	}
}

// WriteCSV writes the rows as headerless, index-free CSV
func (t *Tabular) WriteCSV(w io.Writer) error {
	return writeCSV(w, t)
}

// String summarises the dataset for logs
func (t *Tabular) String() string {
	return fmt.Sprintf("Tabular(%d records, %d columns)", len(t.rows), t.description.NumColumns())
}

func (t *Tabular) compatible(other interfaces.Dataset) (*Tabular, error) {
	o, ok := asTabular(other)
	if !ok {
		return nil, errors.NewPreconditionError(errors.ErrUnsupportedProbe, "cannot combine a tabular dataset with %T", other)
	}
	if !t.description.Equal(o.description) {
		return nil, errors.NewIncompatibilityError("both datasets must have the same data description")
	}
	return o, nil
}

func (t *Tabular) replacePlan(recordsIn interfaces.Dataset, recordsOut []int) (*Tabular, []int, error) {
	in, err := t.compatible(recordsIn)
	if err != nil {
		return nil, nil, err
	}
	if len(recordsOut) > 0 && len(recordsOut) != in.Len() {
		return nil, nil, errors.NewPreconditionError(errors.ErrLengthMismatch,
			"number of records out must equal number of records in, got %d, %d", len(recordsOut), in.Len())
	}
	positions, err := t.dropPositions(recordsOut, in.Len())
	if err != nil {
		return nil, nil, err
	}
	return in, positions, nil
}

// dropPositions validates ids, or picks n distinct random positions when ids is empty
func (t *Tabular) dropPositions(ids []int, n int) ([]int, error) {
	if len(ids) == 0 {
		if n < 0 || n > len(t.rows) {
			return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge,
				"cannot drop %d random records from %d", n, len(t.rows))
		}
		positions := make([]int, n)
		if n > 0 {
			sampleuv.WithoutReplacement(positions, len(t.rows), t.rand())
		}
		return positions, nil
	}

	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(t.rows) {
			return nil, t.outOfRange(id)
		}
		if _, dup := seen[id]; dup {
			return nil, errors.NewPreconditionError(errors.ErrDuplicateIndex, "record %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return slices.Clone(ids), nil
}

func (t *Tabular) without(positions []int) *Tabular {
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		drop[p] = struct{}{}
	}
	rows := make([]row, 0, len(t.rows)-len(drop))
	for i, r := range t.rows {
		if _, ok := drop[i]; !ok {
			rows = append(rows, r.clone())
		}
	}
	return t.derive(rows)
}

func (t *Tabular) take(positions []int) *Tabular {
	rows := make([]row, len(positions))
	for i, p := range positions {
		rows[i] = t.rows[p].clone()
	}
	return t.derive(rows)
}

func (t *Tabular) derive(rows []row) *Tabular {
	if rows == nil {
		rows = []row{}
	}
	r := t.rand()
	return &Tabular{
		description: t.description,
		rows:        rows,
		rng:         rand.New(rand.NewPCG(r.Uint64(), r.Uint64())),
	}
}

func (t *Tabular) rand() *rand.Rand {
	if t.rng == nil {
		t.rng = newRand(0)
	}
	return t.rng
}

func (t *Tabular) outOfRange(id int) error {
	return errors.NewLookupError(errors.ErrIndexOutOfRange, "record %d does not exist", id).
		WithDetails("dataset has %d records", len(t.rows))
}

func asTabular(d interfaces.Dataset) (*Tabular, bool) {
	switch v := d.(type) {
	case *Tabular:
		return v, v != nil
	case *Record:
		if v == nil {
			return nil, false
		}
		return v.Tabular, v.Tabular != nil
	default:
		return nil, false
	}
}

func cloneRows(rows []row) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

func allPositions(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// newRand returns a PCG-backed generator. A zero seed draws a fresh one.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
