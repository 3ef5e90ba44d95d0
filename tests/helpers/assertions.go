package helpers

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	if math.IsNaN(expected) && math.IsNaN(actual) {
		return
	}

	if math.IsInf(expected, 0) && math.IsInf(actual, 0) {
		assert.Equal(t, math.Signbit(expected), math.Signbit(actual), msgAndArgs...)
		return
	}

	diff := math.Abs(expected - actual)
	assert.True(t, diff <= tolerance,
		"expected %f to be within %f of %f (diff: %f). %s",
		actual, tolerance, expected, diff, fmt.Sprint(msgAndArgs...))
}

// AssertFloatSliceEquals asserts that two float slices are equal within tolerance
func AssertFloatSliceEquals(t *testing.T, expected, actual []float64, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	require.Equal(t, len(expected), len(actual), "slice length mismatch. %s", fmt.Sprint(msgAndArgs...))

	for i := range expected {
		AssertFloatEquals(t, expected[i], actual[i], tolerance,
			fmt.Sprintf("element %d: %s", i, fmt.Sprint(msgAndArgs...)))
	}
}

// AssertProbabilities asserts every value lies in [0, 1]
func AssertProbabilities(t *testing.T, values []float64) {
	t.Helper()

	for i, v := range values {
		assert.True(t, v >= 0 && v <= 1, "value %d = %f is not a probability", i, v)
	}
}

// AssertErrorType asserts err is an AppError of the given type
func AssertErrorType(t *testing.T, err error, expected errors.ErrorType) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, expected, errors.TypeOf(err), "unexpected error type for %v", err)
}

// AssertRows asserts a dataset holds exactly the given rows in order
func AssertRows(t *testing.T, expected []models.Row, actual interfaces.Dataset) {
	t.Helper()

	require.Equal(t, len(expected), actual.Len(), "dataset length mismatch")

	i := 0
	for rec := range actual.Records() {
		assert.True(t, expected[i].Equal(rec.Row()), "row %d: expected %s, got %s", i, expected[i], rec.Row())
		i++
	}
}

// AssertContainsAll asserts every record of subset is contained in dataset
func AssertContainsAll(t *testing.T, dataset, subset interfaces.Dataset) {
	t.Helper()

	for rec := range subset.Records() {
		ok, err := dataset.Contains(rec)
		require.NoError(t, err)
		assert.True(t, ok, "record %s missing from dataset", rec.Row())
	}
}

// AssertHTTPResponse asserts HTTP response properties
func AssertHTTPResponse(t *testing.T, statusCode int, body []byte, expectedStatus int, expectedBodyContains ...string) {
	t.Helper()

	assert.Equal(t, expectedStatus, statusCode, "HTTP status code mismatch")

	bodyStr := string(body)
	for _, expected := range expectedBodyContains {
		assert.Contains(t, bodyStr, expected, "response body should contain expected text")
	}
}

// AssertJSONResponse asserts JSON response structure
func AssertJSONResponse(t *testing.T, body []byte, expectedFields map[string]interface{}) {
	t.Helper()

	var actual map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &actual), "response should be valid JSON")

	for field, expectedValue := range expectedFields {
		actualValue, exists := actual[field]
		assert.True(t, exists, "field %s should exist in response", field)

		if exists {
			assert.Equal(t, expectedValue, actualValue, "field %s value mismatch", field)
		}
	}
}

// AssertFileExists asserts that file exists and optionally checks content
func AssertFileExists(t *testing.T, filepath string, expectedContent ...string) {
	t.Helper()

	assert.FileExists(t, filepath, "file should exist")

	if len(expectedContent) > 0 {
		content, err := os.ReadFile(filepath)
		require.NoError(t, err, "should be able to read file")

		contentStr := string(content)
		for _, expected := range expectedContent {
			assert.Contains(t, contentStr, expected, "file should contain expected content")
		}
	}
}
