package attacks

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/features"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// TrainOptions selects the training data for Groundhog.Train. When both
// Datasets and Labels are set they are used as is; otherwise NumSamples
// labelled datasets are drawn from ThreatModel.
type TrainOptions struct {
	ThreatModel interfaces.ThreatModel
	NumSamples  int
	Datasets    []interfaces.Dataset
	Labels      []int
}

// Option configures a Groundhog attack
type Option func(*Groundhog)

// WithFeatureExtractor makes AttackScore use extractor instead of flattening
func WithFeatureExtractor(extractor interfaces.FeatureExtractor) Option {
	return func(g *Groundhog) {
		g.extractor = extractor
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(g *Groundhog) {
		g.logger = logger
	}
}

// WithMetrics records training and inference metrics
func WithMetrics(collector *metrics.Collector) Option {
	return func(g *Groundhog) {
		g.metrics = collector
	}
}

// Groundhog trains a set classifier on synthetic datasets labelled by
// whether the target was in the generator's training data, then uses it to
// guess membership for unseen synthetic datasets (Stadler et al., 2022).
type Groundhog struct {
	classifier  interfaces.Classifier
	description *models.DataDescription
	extractor   interfaces.FeatureExtractor
	trained     bool
	logger      *logrus.Logger
	metrics     *metrics.Collector
}

// NewGroundhog creates an untrained attack
func NewGroundhog(classifier interfaces.Classifier, description *models.DataDescription, opts ...Option) *Groundhog {
	g := &Groundhog{
		classifier:  classifier,
		description: description,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logrus.New()
	}
	return g
}

// Name implements interfaces.Attack
func (g *Groundhog) Name() string {
	return g.classifier.Name() + "Groundhog"
}

// Trained implements interfaces.Attack
func (g *Groundhog) Trained() bool {
	return g.trained
}

// Train fits the classifier. Calling it again retrains from scratch.
func (g *Groundhog) Train(ctx context.Context, opts TrainOptions) (err error) {
	start := time.Now()
	datasets, labels := opts.Datasets, opts.Labels
	defer func() {
		g.metrics.RecordTraining(g.Name(), len(labels), err, time.Since(start))
	}()

	if datasets == nil || labels == nil {
		if opts.ThreatModel == nil {
			return errors.NewPreconditionError(errors.ErrMissingThreatModel, "cannot train %s", g.Name())
		}
		n := opts.NumSamples
		if n == 0 {
			n = constants.DefaultNumTrainingSamples
		}
		datasets, labels, err = opts.ThreatModel.GenerateTrainingSamples(ctx, n)
		if err != nil {
			return err
		}
	}
	if len(datasets) != len(labels) {
		return errors.NewPreconditionError(errors.ErrLengthMismatch,
			"got %d datasets and %d labels", len(datasets), len(labels))
	}

	g.logger.WithFields(logrus.Fields{
		"attack":  g.Name(),
		"samples": len(datasets),
	}).Info("Training attack")

	if err = g.classifier.Fit(ctx, datasets, labels); err != nil {
		return err
	}

	g.trained = true
	return nil
}

// Attack implements interfaces.Attack. Scores are rounded to the nearest
// integer and clamped to {0, 1}.
func (g *Groundhog) Attack(ctx context.Context, datasets []interfaces.Dataset) (guesses []int, err error) {
	defer func() {
		g.metrics.RecordInference(g.Name(), "attack", len(datasets), err)
	}()

	if !g.trained {
		return nil, g.notTrained()
	}

	scores, err := g.classifier.Predict(ctx, datasets)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(datasets) {
		return nil, errors.WrapError(errors.ErrLengthMismatch, errors.ErrorTypeAttack, errors.CodeClassifierFailed,
			"classifier returned the wrong number of scores")
	}

	guesses = make([]int, len(scores))
	for i, s := range scores {
		if math.Round(s) >= 1 {
			guesses[i] = 1
		}
	}

	g.metrics.RecordGuesses(g.Name(), guesses)
	return guesses, nil
}

// AttackScore implements interfaces.Attack
func (g *Groundhog) AttackScore(ctx context.Context, datasets []interfaces.Dataset, secret []int) (scores []float64, err error) {
	defer func() {
		g.metrics.RecordInference(g.Name(), "attack_score", len(datasets), err)
	}()

	if !g.trained {
		return nil, g.notTrained()
	}
	if len(datasets) != len(secret) {
		return nil, errors.NewPreconditionError(errors.ErrLengthMismatch,
			"got %d datasets and %d secrets", len(datasets), len(secret))
	}
	for i, s := range secret {
		if s != 0 && s != 1 {
			return nil, errors.NewPreconditionError(errors.ErrInvalidLabel, "secret %d is %d, expected 0 or 1", i, s)
		}
	}

	extractor := g.extractor
	if extractor == nil {
		for _, ds := range datasets {
			if !g.description.Equal(ds.Description()) {
				return nil, errors.NewIncompatibilityError("dataset does not match the attack's data description")
			}
		}
		extractor = features.Flattener{}
	}

	x, err := features.Dense(extractor, datasets)
	if err != nil {
		return nil, err
	}
	probs, err := g.classifier.PredictProba(ctx, x)
	if err != nil {
		return nil, err
	}
	if rows, cols := probs.Dims(); rows != len(datasets) || cols != 2 {
		return nil, errors.WrapError(errors.ErrLengthMismatch, errors.ErrorTypeAttack, errors.CodeClassifierFailed,
			"classifier returned a probability matrix of the wrong shape").
			WithDetails("got %dx%d, expected %dx2", rows, cols, len(datasets))
	}

	scores = make([]float64, len(datasets))
	for i, s := range secret {
		scores[i] = probs.At(i, s)
	}
	return scores, nil
}

func (g *Groundhog) notTrained() error {
	return errors.NewPreconditionError(errors.ErrNotTrained, "%s must be trained before use", g.Name())
}
