package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/attacks"
	"github.com/inferloop/mia/internal/classifiers"
	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/features"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/internal/threatmodels"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// Config configures the evaluator
type Config struct {
	Classifier *classifiers.LogisticRegressionConfig `json:"classifier" yaml:"classifier" mapstructure:"classifier"`
	// Timeout bounds a whole evaluation. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the default evaluator configuration
func DefaultConfig() *Config {
	return &Config{
		Classifier: classifiers.DefaultLogisticRegressionConfig(),
		Timeout:    10 * time.Minute,
	}
}

// SampleSource produces labelled samples for training and testing
type SampleSource interface {
	interfaces.ThreatModel
	GenerateTestSamples(ctx context.Context, numSamples int) ([]interfaces.Dataset, []int, error)
}

// TrainableAttack is an attack trained from a threat model
type TrainableAttack interface {
	interfaces.Attack
	Train(ctx context.Context, opts attacks.TrainOptions) error
}

// Evaluator runs targeted Groundhog attacks end to end
type Evaluator struct {
	config     *Config
	store      *storage.DatasetStore
	generators *generators.Factory
	logger     *logrus.Logger
	metrics    *metrics.Collector
}

// NewEvaluator creates an evaluator. store may be nil when only
// EvaluateDataset is used.
func NewEvaluator(config *Config, store *storage.DatasetStore, factory *generators.Factory, logger *logrus.Logger, collector *metrics.Collector) *Evaluator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Classifier == nil {
		config.Classifier = classifiers.DefaultLogisticRegressionConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if factory == nil {
		factory = generators.NewFactory(logger, collector)
	}
	return &Evaluator{
		config:     config,
		store:      store,
		generators: factory,
		logger:     logger,
		metrics:    collector,
	}
}

// Evaluate loads req.Dataset from the store and evaluates it
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if e.store == nil {
		return nil, errors.NewConfigurationError("no dataset store configured")
	}
	if req.Dataset == "" {
		return nil, invalid("dataset is required")
	}

	ds, err := e.store.Load(ctx, req.Dataset)
	if err != nil {
		return nil, err
	}
	return e.EvaluateDataset(ctx, ds, req)
}

// EvaluateDataset attacks the record at req.TargetID of ds. The rest of ds
// serves as the attacker's auxiliary data.
func (e *Evaluator) EvaluateDataset(ctx context.Context, ds interfaces.Dataset, req Request) (*Result, error) {
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	selected, err := ds.GetRecords([]int{req.TargetID})
	if err != nil {
		return nil, err
	}
	target, err := datasets.RecordFromDataset(selected)
	if err != nil {
		return nil, err
	}

	generator, err := e.generators.CreateGenerator(req.Generator)
	if err != nil {
		return nil, err
	}

	threatModel, err := threatmodels.NewTargetedMIA(&threatmodels.TargetedMIAConfig{
		TrainingSize:  req.TrainingSize,
		SyntheticSize: req.SyntheticSize,
		Seed:          req.Seed,
	}, ds, target, generator, e.logger)
	if err != nil {
		return nil, err
	}

	attack := e.newAttack(ds, req.FeatureSet)

	result, err := e.Run(ctx, attack, threatModel, req.NumTrainingSamples, req.NumTestSamples)
	if err != nil {
		return nil, err
	}
	result.Dataset = req.Dataset
	result.Generator = generator.Name()
	result.FeatureSet = req.FeatureSet
	result.TargetID = req.TargetID

	return result, nil
}

// Run trains attack on nTrain samples from source, then attacks nTest fresh
// samples and scores the guesses against their labels.
func (e *Evaluator) Run(ctx context.Context, attack TrainableAttack, source SampleSource, nTrain, nTest int) (result *Result, err error) {
	result = &Result{
		RunID:     uuid.New().String(),
		Attack:    attack.Name(),
		StartedAt: time.Now(),
	}
	defer func() {
		advantage := 0.0
		if err == nil {
			advantage = result.Advantage
		}
		e.metrics.RecordEvaluation(attack.Name(), advantage, err)
	}()

	logger := e.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"attack": result.Attack,
	})

	start := time.Now()
	if err = attack.Train(ctx, attacks.TrainOptions{ThreatModel: source, NumSamples: nTrain}); err != nil {
		return nil, err
	}
	result.TrainingDuration = time.Since(start)
	logger.WithField("duration", result.TrainingDuration).Info("Attack trained")

	start = time.Now()
	samples, labels, err := source.GenerateTestSamples(ctx, nTest)
	if err != nil {
		return nil, err
	}
	guesses, err := attack.Attack(ctx, samples)
	if err != nil {
		return nil, err
	}
	scores, err := attack.AttackScore(ctx, samples, labels)
	if err != nil {
		return nil, err
	}
	result.TestDuration = time.Since(start)

	result.Labels = labels
	result.Guesses = guesses
	result.Scores = scores
	result.score()

	logger.WithFields(logrus.Fields{
		"accuracy":  result.Accuracy,
		"advantage": result.Advantage,
		"samples":   len(labels),
	}).Info("Evaluation finished")

	return result, nil
}

func (e *Evaluator) newAttack(ds interfaces.Dataset, featureSet string) *attacks.Groundhog {
	var extractor interfaces.FeatureExtractor
	name := "Flatten"
	if featureSet == constants.FeatureSetNaive {
		extractor = features.NewNaiveFeatureSet(ds.Description())
		name = "Naive"
	} else {
		extractor = features.Flattener{}
	}

	model := classifiers.NewLogisticRegression(e.config.Classifier, e.logger)
	classifier := classifiers.NewFeatureClassifier(name+model.Name(), extractor, model, e.logger)

	return attacks.NewGroundhog(classifier, ds.Description(),
		attacks.WithFeatureExtractor(extractor),
		attacks.WithLogger(e.logger),
		attacks.WithMetrics(e.metrics),
	)
}
