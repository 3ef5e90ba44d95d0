package classifiers

import (
	"context"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/mia/internal/features"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// FeatureClassifier classifies whole datasets by extracting a feature
// vector from each and passing it to a logistic regression
type FeatureClassifier struct {
	name      string
	extractor interfaces.FeatureExtractor
	model     *LogisticRegression
	logger    *logrus.Logger
}

// NewFeatureClassifier creates a set classifier. A nil extractor flattens datasets.
func NewFeatureClassifier(name string, extractor interfaces.FeatureExtractor, model *LogisticRegression, logger *logrus.Logger) *FeatureClassifier {
	if logger == nil {
		logger = logrus.New()
	}
	if extractor == nil {
		extractor = features.Flattener{}
	}
	if model == nil {
		model = NewLogisticRegression(nil, logger)
	}
	if name == "" {
		name = "FeatureClassifier"
	}
	return &FeatureClassifier{name: name, extractor: extractor, model: model, logger: logger}
}

// Name implements interfaces.Classifier
func (c *FeatureClassifier) Name() string {
	return c.name
}

// Extractor returns the feature extractor used on datasets
func (c *FeatureClassifier) Extractor() interfaces.FeatureExtractor {
	return c.extractor
}

// Fit implements interfaces.Classifier
func (c *FeatureClassifier) Fit(ctx context.Context, datasets []interfaces.Dataset, labels []int) error {
	if len(datasets) != len(labels) {
		return errors.NewPreconditionError(errors.ErrLengthMismatch,
			"got %d datasets and %d labels", len(datasets), len(labels))
	}

	y := make([]float64, len(labels))
	for i, label := range labels {
		if label != 0 && label != 1 {
			return errors.NewPreconditionError(errors.ErrInvalidLabel, "label %d is %d, expected 0 or 1", i, label)
		}
		y[i] = float64(label)
	}

	x, err := features.Dense(c.extractor, datasets)
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"classifier": c.name,
		"datasets":   len(datasets),
	}).Info("Fitting set classifier")

	return c.model.FitMatrix(ctx, x, y)
}

// Predict implements interfaces.Classifier. The score is the class-1 probability.
func (c *FeatureClassifier) Predict(ctx context.Context, datasets []interfaces.Dataset) ([]float64, error) {
	x, err := features.Dense(c.extractor, datasets)
	if err != nil {
		return nil, err
	}
	probs, err := c.model.PredictProba(ctx, x)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 1, probs), nil
}

// PredictProba implements interfaces.Classifier
func (c *FeatureClassifier) PredictProba(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	return c.model.PredictProba(ctx, x)
}
