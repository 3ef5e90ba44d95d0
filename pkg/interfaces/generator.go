package interfaces

import (
	"context"
)

// Generator defines the interface for synthetic data generators
type Generator interface {
	// Name returns a human-readable name for the generator
	Name() string

	// Fit trains the generator on a dataset
	Fit(ctx context.Context, dataset Dataset) error

	// Generate produces a synthetic dataset of numRecords records. The same
	// seed on the same fitted generator produces the same dataset; zero draws
	// a fresh seed.
	Generate(ctx context.Context, numRecords int, seed uint64) (Dataset, error)
}
