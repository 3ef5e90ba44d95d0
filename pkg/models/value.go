package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the static type of a column, resolved from its representation.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindCategory
	KindTime
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindCategory:
		return "category"
	case KindTime:
		return "time"
	default:
		return "invalid"
	}
}

// Value is a single typed cell. Only the field matching Kind is meaningful;
// categorical values are stored as strings.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Time  time.Time
}

// IntValue builds an integer value
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue builds a float value
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue builds a free-text value
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// CategoryValue builds a categorical value
func CategoryValue(v string) Value { return Value{Kind: KindCategory, Str: v} }

// TimeValue builds a temporal value
func TimeValue(v time.Time) Value { return Value{Kind: KindTime, Time: v} }

// Equal compares two values by kind and content. NaN equals NaN so that
// missing numeric cells compare equal to themselves.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		if math.IsNaN(v.Float) && math.IsNaN(o.Float) {
			return true
		}
		return v.Float == o.Float
	case KindString, KindCategory:
		return v.Str == o.Str
	case KindTime:
		return v.Time.Equal(o.Time)
	default:
		return true
	}
}

// String renders the value for display and CSV output
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString, KindCategory:
		return v.Str
	case KindTime:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Row is an ordered list of values, one per column of a DataDescription.
type Row []Value

// Equal compares two rows cell by cell
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns a copy of the row that shares no storage with r
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// String renders the row for log output
func (r Row) String() string {
	s := "["
	for i, v := range r {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + "]"
}

// GoString is used by %#v in test failure output
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.Kind, v.String())
}
