package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreconditionErrorMatchesSentinel(t *testing.T) {
	err := NewPreconditionError(ErrNotTrained, "cannot attack with %s", "groundhog")

	require.Error(t, err)
	assert.True(t, Is(err, ErrNotTrained))
	assert.Equal(t, ErrorTypePrecondition, TypeOf(err))
	assert.Contains(t, err.Error(), "cannot attack with groundhog")
	assert.Equal(t, 400, err.HTTPStatus)
}

func TestTypeOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAmbiguityError("2 matches"))

	assert.Equal(t, ErrorTypeAmbiguity, TypeOf(err))
	assert.True(t, Is(err, ErrAmbiguousRecord))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestAppErrorIs(t *testing.T) {
	a := NewIncompatibilityError("left")
	b := NewIncompatibilityError("right")

	assert.True(t, Is(a, b))
	assert.True(t, Is(a, ErrSchemaMismatch))
	assert.False(t, Is(a, NewValidationError(CodeInvalidInput, "x")))
}

func TestWithContextAndDetails(t *testing.T) {
	err := NewLookupError(ErrIndexOutOfRange, "index 7").
		WithDetails("dataset has %d rows", 5).
		WithContext("index", 7)

	assert.Equal(t, 7, err.Context["index"])
	assert.Contains(t, err.Error(), "dataset has 5 rows")
	assert.Equal(t, 404, err.HTTPStatus)
}

func TestWrapStorageError(t *testing.T) {
	assert.Nil(t, WrapStorageError(nil, "file", "get", "k"))

	err := WrapStorageError(fmt.Errorf("disk gone"), "file", "put", "datasets/a.csv")
	require.NotNil(t, err)
	assert.Equal(t, CodeWriteFailed, err.Code)
	assert.True(t, Is(err, ErrStorageWriteFailed))
	assert.Contains(t, err.Error(), "datasets/a.csv")

	assert.Equal(t, 500, err.HTTPStatus)

	nf := NewObjectNotFoundError("s3", "missing")
	assert.True(t, Is(nf, ErrDataNotFound))
	assert.Equal(t, 404, nf.HTTPStatus)
}
