package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/inferloop/mia/pkg/errors"
)

// Representation names accepted in a column spec. A JSON array in place of
// a name declares a categorical column with those categories.
const (
	RepresentationInteger  = "integer"
	RepresentationNumber   = "number"
	RepresentationFloat    = "float"
	RepresentationString   = "string"
	RepresentationDate     = "date"
	RepresentationDatetime = "datetime"
)

// Column types, as written by data-description files.
const (
	ColumnTypeFinite        = "finite"
	ColumnTypeFiniteOrdered = "finite/ordered"
	ColumnTypeReal          = "real"
	ColumnTypeInterval      = "interval"
	ColumnTypeCountable     = "countable"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05.999999999"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	datetimeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// Representation is either a named scalar representation or a list of categories.
type Representation struct {
	Name       string
	Categories []string
}

// MarshalJSON writes categories as an array and named representations as a string
func (r Representation) MarshalJSON() ([]byte, error) {
	if r.Categories != nil {
		return json.Marshal(r.Categories)
	}
	return json.Marshal(r.Name)
}

// UnmarshalJSON accepts a string or an array of categories
func (r *Representation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		r.Name = ""
		r.Categories = make([]string, len(raw))
		for i, c := range raw {
			r.Categories[i] = fmt.Sprint(c)
		}
		return nil
	}
	r.Categories = nil
	return json.Unmarshal(data, &r.Name)
}

// Equal compares two representations
func (r Representation) Equal(o Representation) bool {
	if r.Name != o.Name || (r.Categories == nil) != (o.Categories == nil) || len(r.Categories) != len(o.Categories) {
		return false
	}
	for i := range r.Categories {
		if r.Categories[i] != o.Categories[i] {
			return false
		}
	}
	return true
}

// Column is one entry of a data description
type Column struct {
	Name           string         `json:"name,omitempty"`
	Type           string         `json:"type"`
	Representation Representation `json:"representation"`
}

// Kind resolves the static type of the column
func (c Column) Kind() Kind {
	if c.Representation.Categories != nil {
		return KindCategory
	}
	switch c.Representation.Name {
	case RepresentationInteger, "int":
		return KindInt
	case RepresentationNumber, RepresentationFloat:
		return KindFloat
	case RepresentationString:
		return KindString
	case RepresentationDate, RepresentationDatetime:
		return KindTime
	default:
		return KindInvalid
	}
}

// IsTemporal reports whether the column holds dates or datetimes
func (c Column) IsTemporal() bool {
	return c.Kind() == KindTime
}

// CategoryIndex returns the position of value among the column's categories
func (c Column) CategoryIndex(value string) (int, bool) {
	for i, cat := range c.Representation.Categories {
		if cat == value {
			return i, true
		}
	}
	return -1, false
}

// DataDescription is the ordered list of column specs shared by every
// dataset built over the same table.
type DataDescription struct {
	Columns []Column
	kinds   []Kind
}

// NewDataDescription validates the column specs and resolves their kinds
func NewDataDescription(columns []Column) (*DataDescription, error) {
	kinds := make([]Kind, len(columns))
	for i, col := range columns {
		if col.Type == "" {
			return nil, errors.WrapError(errors.ErrInvalidSchema, errors.ErrorTypeValidation, errors.CodeInvalidSchema,
				fmt.Sprintf("column %d has no type", i))
		}
		kinds[i] = col.Kind()
		if kinds[i] == KindInvalid {
			return nil, errors.WrapError(errors.ErrInvalidRepresentation, errors.ErrorTypeValidation, errors.CodeInvalidSchema,
				fmt.Sprintf("column %d has unsupported representation %q", i, col.Representation.Name))
		}
		if kinds[i] == KindCategory && len(col.Representation.Categories) == 0 {
			return nil, errors.WrapError(errors.ErrInvalidRepresentation, errors.ErrorTypeValidation, errors.CodeInvalidSchema,
				fmt.Sprintf("column %d declares no categories", i))
		}
	}

	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &DataDescription{Columns: cols, kinds: kinds}, nil
}

// ParseDataDescription decodes the JSON array form of a data description
func ParseDataDescription(data []byte) (*DataDescription, error) {
	var columns []Column
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidSchema, "failed to decode data description")
	}
	return NewDataDescription(columns)
}

// MarshalJSON writes the description as a JSON array of column specs
func (d *DataDescription) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Columns)
}

// UnmarshalJSON decodes and validates a JSON array of column specs
func (d *DataDescription) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDataDescription(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// NumColumns returns the number of columns
func (d *DataDescription) NumColumns() int {
	return len(d.Columns)
}

// Kinds returns the resolved kind of every column
func (d *DataDescription) Kinds() []Kind {
	out := make([]Kind, len(d.Columns))
	for i := range d.Columns {
		out[i] = d.kindOf(i)
	}
	return out
}

func (d *DataDescription) kindOf(col int) Kind {
	if len(d.kinds) == len(d.Columns) {
		return d.kinds[col]
	}
	return d.Columns[col].Kind()
}

// Equal compares two descriptions column by column. Two nil descriptions are equal.
func (d *DataDescription) Equal(o *DataDescription) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d == o {
		return true
	}
	if len(d.Columns) != len(o.Columns) {
		return false
	}
	for i := range d.Columns {
		a, b := d.Columns[i], o.Columns[i]
		if a.Name != b.Name || a.Type != b.Type || !a.Representation.Equal(b.Representation) {
			return false
		}
	}
	return true
}

// ValidateRow checks that row has one value per column of the matching kind
func (d *DataDescription) ValidateRow(row Row) error {
	if len(row) != len(d.Columns) {
		return errors.NewPreconditionError(errors.ErrLengthMismatch,
			"row has %d values, description has %d columns", len(row), len(d.Columns))
	}
	for i, v := range row {
		if v.Kind != d.kindOf(i) {
			return errors.WrapError(errors.ErrInvalidValue, errors.ErrorTypeValidation, errors.CodeInvalidInput,
				fmt.Sprintf("column %d expects %s, got %s", i, d.kindOf(i), v.Kind))
		}
		if v.Kind == KindCategory {
			if _, ok := d.Columns[i].CategoryIndex(v.Str); !ok {
				return errors.WrapError(errors.ErrInvalidValue, errors.ErrorTypeValidation, errors.CodeInvalidInput,
					fmt.Sprintf("column %d has unknown category %q", i, v.Str))
			}
		}
	}
	return nil
}

// ParseValue converts a raw text cell into a typed value for column col
func (d *DataDescription) ParseValue(col int, raw string) (Value, error) {
	column := d.Columns[col]
	switch d.kindOf(col) {
	case KindInt:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			// pandas writes integer columns holding floats as "3.0"
			f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if ferr != nil || f != math.Trunc(f) {
				return Value{}, d.parseError(col, raw, err)
			}
			v = int64(f)
		}
		return IntValue(v), nil
	case KindFloat:
		if strings.TrimSpace(raw) == "" {
			return FloatValue(math.NaN()), nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, d.parseError(col, raw, err)
		}
		return FloatValue(v), nil
	case KindString:
		return StringValue(raw), nil
	case KindCategory:
		if _, ok := column.CategoryIndex(raw); !ok {
			return Value{}, d.parseError(col, raw, fmt.Errorf("unknown category"))
		}
		return CategoryValue(raw), nil
	case KindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return TimeValue(normaliseTime(column, t)), nil
			}
		}
		return Value{}, d.parseError(col, raw, fmt.Errorf("unrecognised time layout"))
	default:
		return Value{}, d.parseError(col, raw, errors.ErrInvalidRepresentation)
	}
}

// FormatValue renders v for column col in the persisted text format.
// Datetimes are written in UTC with as many fractional digits as needed.
func (d *DataDescription) FormatValue(col int, v Value) string {
	if v.Kind == KindTime {
		if d.Columns[col].Representation.Name == RepresentationDate {
			return v.Time.Format(dateLayout)
		}
		return v.Time.UTC().Format(datetimeLayout)
	}
	if v.Kind == KindFloat && math.IsNaN(v.Float) {
		return ""
	}
	return v.String()
}

// normaliseTime keeps the calendar day of date columns and moves datetimes to UTC
func normaliseTime(column Column, t time.Time) time.Time {
	if column.Representation.Name == RepresentationDate {
		y, m, day := t.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return t.UTC()
}

func (d *DataDescription) parseError(col int, raw string, cause error) error {
	return errors.WrapError(fmt.Errorf("%w: %v", errors.ErrInvalidValue, cause), errors.ErrorTypeValidation, errors.CodeInvalidFormat,
		fmt.Sprintf("cannot parse %q as %s for column %d", raw, d.kindOf(col), col))
}
