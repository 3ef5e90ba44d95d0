package interfaces

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Classifier is a binary classifier over whole datasets
type Classifier interface {
	// Name returns a human-readable name for the classifier
	Name() string

	// Fit trains the classifier on labelled datasets. A label of 1 means the
	// target was in the data that produced the dataset.
	Fit(ctx context.Context, datasets []Dataset, labels []int) error

	// Predict returns one continuous membership score per dataset
	Predict(ctx context.Context, datasets []Dataset) ([]float64, error)

	// PredictProba returns an n×2 matrix of class-0/class-1 probabilities
	// for n feature rows. Each row sums to 1.
	PredictProba(ctx context.Context, features mat.Matrix) (*mat.Dense, error)
}

// ThreatModel produces labelled training samples for an attack
type ThreatModel interface {
	// GenerateTrainingSamples returns numSamples datasets and their labels
	GenerateTrainingSamples(ctx context.Context, numSamples int) ([]Dataset, []int, error)
}

// FeatureExtractor turns a dataset into a fixed-length feature vector
type FeatureExtractor interface {
	Extract(dataset Dataset) ([]float64, error)
}

// Attack is a membership inference attack against a generative model
type Attack interface {
	// Name returns the attack name
	Name() string

	// Trained reports whether the attack can be used for inference
	Trained() bool

	// Attack returns a 0/1 guess per dataset
	Attack(ctx context.Context, datasets []Dataset) ([]int, error)

	// AttackScore returns the probability assigned to the true label of each dataset
	AttackScore(ctx context.Context, datasets []Dataset, secret []int) ([]float64, error)
}
