package threatmodels

import (
	"context"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// TargetedMIAConfig sizes the simulated training and synthetic datasets
type TargetedMIAConfig struct {
	TrainingSize  int    `json:"training_size" yaml:"training_size" mapstructure:"training_size"`
	SyntheticSize int    `json:"synthetic_size" yaml:"synthetic_size" mapstructure:"synthetic_size"`
	Seed          uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// DefaultTargetedMIAConfig returns the default sizes
func DefaultTargetedMIAConfig() *TargetedMIAConfig {
	return &TargetedMIAConfig{
		TrainingSize:  constants.DefaultTrainingSize,
		SyntheticSize: constants.DefaultSyntheticSize,
	}
}

// TargetedMIA is the threat model of an attacker with auxiliary data from
// the same population, knowledge of the generator, and one target record.
// Each sample is a synthetic dataset generated from a training set drawn
// from the auxiliary data, with the target swapped in for label 1.
type TargetedMIA struct {
	config    *TargetedMIAConfig
	auxiliary interfaces.Dataset
	target    interfaces.Record
	generator interfaces.Generator
	rng       *rand.Rand
	logger    *logrus.Logger
}

// NewTargetedMIA creates the threat model. Copies of the target are removed
// from the auxiliary data so label 0 samples never contain it.
func NewTargetedMIA(config *TargetedMIAConfig, auxiliary interfaces.Dataset, target interfaces.Record, generator interfaces.Generator, logger *logrus.Logger) (*TargetedMIA, error) {
	if config == nil {
		config = DefaultTargetedMIAConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if auxiliary == nil || target == nil || generator == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "auxiliary data, target and generator are required")
	}
	if !auxiliary.Description().Equal(target.Description()) {
		return nil, errors.NewIncompatibilityError("target and auxiliary data have different data descriptions")
	}

	var copies []int
	pos := 0
	for rec := range auxiliary.Records() {
		if rec.Row().Equal(target.Row()) {
			copies = append(copies, pos)
		}
		pos++
	}
	aux, err := auxiliary.DropRecords(copies, 0)
	if err != nil {
		return nil, err
	}

	if config.TrainingSize <= 0 || config.TrainingSize > aux.Len() {
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge,
			"training size %d must be in [1, %d]", config.TrainingSize, aux.Len())
	}
	if config.SyntheticSize <= 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "synthetic size must be positive")
	}

	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	logger.WithFields(logrus.Fields{
		"auxiliary":      aux.Len(),
		"target_copies":  len(copies),
		"training_size":  config.TrainingSize,
		"synthetic_size": config.SyntheticSize,
		"generator":      generator.Name(),
	}).Info("Created targeted threat model")

	return &TargetedMIA{
		config:    config,
		auxiliary: aux,
		target:    target,
		generator: generator,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:    logger,
	}, nil
}

// Target returns the target record
func (tm *TargetedMIA) Target() interfaces.Record {
	return tm.target
}

// GenerateTrainingSamples implements interfaces.ThreatModel. Labels are
// balanced: numSamples/2 rounded up carry label 1.
func (tm *TargetedMIA) GenerateTrainingSamples(ctx context.Context, numSamples int) ([]interfaces.Dataset, []int, error) {
	return tm.generate(ctx, numSamples, "training")
}

// GenerateTestSamples draws fresh labelled samples for evaluating a trained
// attack. They come from the same distribution as the training samples.
func (tm *TargetedMIA) GenerateTestSamples(ctx context.Context, numSamples int) ([]interfaces.Dataset, []int, error) {
	return tm.generate(ctx, numSamples, "test")
}

func (tm *TargetedMIA) generate(ctx context.Context, numSamples int, purpose string) ([]interfaces.Dataset, []int, error) {
	if numSamples <= 0 {
		return nil, nil, errors.NewPreconditionError(errors.ErrEmptyInput, "number of samples must be positive, got %d", numSamples)
	}

	labels := make([]int, numSamples)
	for i := range labels {
		labels[i] = 1 - i%2
	}
	tm.rng.Shuffle(len(labels), func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})

	samples := make([]interfaces.Dataset, numSamples)
	for i, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		synthetic, err := tm.sample(ctx, label)
		if err != nil {
			return nil, nil, err
		}
		samples[i] = synthetic
	}

	tm.logger.WithFields(logrus.Fields{
		"purpose": purpose,
		"samples": numSamples,
	}).Info("Generated labelled synthetic datasets")

	return samples, labels, nil
}

// sample produces one synthetic dataset from a fresh training set
func (tm *TargetedMIA) sample(ctx context.Context, label int) (interfaces.Dataset, error) {
	subsets, err := tm.auxiliary.CreateSubsets(1, tm.config.TrainingSize, tm.nextSeed())
	if err != nil {
		return nil, err
	}
	training := subsets[0]
	if label == 1 {
		out := []int{tm.rng.IntN(training.Len())}
		if err := training.ReplaceInPlace(tm.target, out); err != nil {
			return nil, err
		}
	}

	if err := tm.generator.Fit(ctx, training); err != nil {
		return nil, err
	}
	return tm.generator.Generate(ctx, tm.config.SyntheticSize, tm.nextSeed())
}

func (tm *TargetedMIA) nextSeed() uint64 {
	for {
		if s := tm.rng.Uint64(); s != 0 {
			return s
		}
	}
}
