package evaluation

import (
	"fmt"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
)

// Request describes one targeted membership inference evaluation
type Request struct {
	// Dataset names a dataset in the store. Ignored by EvaluateDataset.
	Dataset string `json:"dataset" yaml:"dataset" mapstructure:"dataset"`
	// TargetID is the position of the target record in the dataset
	TargetID           int    `json:"target_id" yaml:"target_id" mapstructure:"target_id"`
	Generator          string `json:"generator" yaml:"generator" mapstructure:"generator"`
	FeatureSet         string `json:"feature_set" yaml:"feature_set" mapstructure:"feature_set"`
	TrainingSize       int    `json:"training_size" yaml:"training_size" mapstructure:"training_size"`
	SyntheticSize      int    `json:"synthetic_size" yaml:"synthetic_size" mapstructure:"synthetic_size"`
	NumTrainingSamples int    `json:"num_training_samples" yaml:"num_training_samples" mapstructure:"num_training_samples"`
	NumTestSamples     int    `json:"num_test_samples" yaml:"num_test_samples" mapstructure:"num_test_samples"`
	Seed               uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// SetDefaults fills zero-valued fields
func (r *Request) SetDefaults() {
	if r.Generator == "" {
		r.Generator = constants.GeneratorTypeRaw
	}
	if r.FeatureSet == "" {
		r.FeatureSet = constants.FeatureSetNaive
	}
	if r.TrainingSize == 0 {
		r.TrainingSize = constants.DefaultTrainingSize
	}
	if r.SyntheticSize == 0 {
		r.SyntheticSize = constants.DefaultSyntheticSize
	}
	if r.NumTrainingSamples == 0 {
		r.NumTrainingSamples = constants.DefaultNumTrainingSamples
	}
	if r.NumTestSamples == 0 {
		r.NumTestSamples = constants.DefaultNumTestSamples
	}
}

// Validate checks the request after defaults are applied
func (r *Request) Validate() error {
	switch {
	case r.TargetID < 0:
		return invalid("target_id must be non-negative, got %d", r.TargetID)
	case r.TrainingSize < 1:
		return invalid("training_size must be positive, got %d", r.TrainingSize)
	case r.SyntheticSize < 1:
		return invalid("synthetic_size must be positive, got %d", r.SyntheticSize)
	case r.NumTrainingSamples < 2 || r.NumTrainingSamples > constants.MaxSamples:
		return invalid("num_training_samples must be in [2, %d], got %d", constants.MaxSamples, r.NumTrainingSamples)
	case r.NumTestSamples < 1 || r.NumTestSamples > constants.MaxSamples:
		return invalid("num_test_samples must be in [1, %d], got %d", constants.MaxSamples, r.NumTestSamples)
	}

	switch r.FeatureSet {
	case constants.FeatureSetFlatten, constants.FeatureSetNaive:
	default:
		return invalid("unknown feature_set %q", r.FeatureSet)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewValidationError(errors.CodeInvalidInput, fmt.Sprintf(format, args...))
}
