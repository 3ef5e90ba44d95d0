package datasets

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/inferloop/mia/pkg/errors"
)

// IndexSplit draws count index lists, each sampleSize distinct positions in
// [0, total) in ascending order. Lists are drawn independently of each other.
func IndexSplit(total, sampleSize, count int, rng *rand.Rand) ([][]int, error) {
	if count < 0 || sampleSize < 0 {
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge,
			"subset count and size must be non-negative, got %d, %d", count, sampleSize)
	}
	if sampleSize > total {
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge,
			"cannot draw subsets of %d records from %d", sampleSize, total)
	}
	if rng == nil {
		rng = newRand(0)
	}

	splits := make([][]int, count)
	for i := range splits {
		idx := make([]int, sampleSize)
		if sampleSize > 0 {
			sampleuv.WithoutReplacement(idx, total, rng)
			slices.Sort(idx)
		}
		splits[i] = idx
	}
	return splits, nil
}
