package classifiers

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/mia/pkg/errors"
)

// LogisticRegressionConfig controls training
type LogisticRegressionConfig struct {
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`
	Epochs       int     `json:"epochs" yaml:"epochs" mapstructure:"epochs"`
	L2           float64 `json:"l2" yaml:"l2" mapstructure:"l2"`
}

// DefaultLogisticRegressionConfig returns the training defaults
func DefaultLogisticRegressionConfig() *LogisticRegressionConfig {
	return &LogisticRegressionConfig{
		LearningRate: 0.1,
		Epochs:       500,
		L2:           1e-3,
	}
}

// LogisticRegression is a binary logistic regression trained by batch
// gradient descent on standardised features
type LogisticRegression struct {
	config  *LogisticRegressionConfig
	logger  *logrus.Logger
	weights *mat.VecDense
	bias    float64
	mean    []float64
	scale   []float64
}

// NewLogisticRegression creates an untrained model
func NewLogisticRegression(config *LogisticRegressionConfig, logger *logrus.Logger) *LogisticRegression {
	if config == nil {
		config = DefaultLogisticRegressionConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LogisticRegression{config: config, logger: logger}
}

// Name returns the model name
func (m *LogisticRegression) Name() string {
	return "LogisticRegression"
}

// Fitted reports whether the model has been trained
func (m *LogisticRegression) Fitted() bool {
	return m.weights != nil
}

// FitMatrix trains on an n×d feature matrix and n labels in {0, 1}. The
// previous model stays in place when fitting fails.
func (m *LogisticRegression) FitMatrix(ctx context.Context, x mat.Matrix, y []float64) error {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return errors.NewPreconditionError(errors.ErrEmptyInput, "cannot fit on a %dx%d matrix", n, d)
	}
	if len(y) != n {
		return errors.NewPreconditionError(errors.ErrLengthMismatch, "got %d rows and %d labels", n, len(y))
	}

	mean := make([]float64, d)
	scale := make([]float64, d)
	col := make([]float64, n)
	finite := make([]float64, 0, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		finite = finite[:0]
		for _, v := range col {
			if isFinite(v) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			mean[j], scale[j] = 0, 1
			continue
		}
		mu, std := stat.PopMeanStdDev(finite, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		mean[j], scale[j] = mu, std
	}
	xs := standardise(x, mean, scale)

	weights := mat.NewVecDense(d, nil)
	bias := 0.0
	labels := mat.NewVecDense(n, y)
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d, nil)

	for epoch := 0; epoch < m.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		residual.MulVec(xs, weights)
		for i := 0; i < n; i++ {
			residual.SetVec(i, sigmoid(residual.AtVec(i)+bias))
		}
		residual.SubVec(residual, labels)

		grad.MulVec(xs.T(), residual)
		grad.ScaleVec(1/float64(n), grad)
		grad.AddScaledVec(grad, m.config.L2, weights)

		weights.AddScaledVec(weights, -m.config.LearningRate, grad)
		bias -= m.config.LearningRate * floats.Sum(residual.RawVector().Data) / float64(n)
	}

	m.mean, m.scale = mean, scale
	m.weights, m.bias = weights, bias

	m.logger.WithFields(logrus.Fields{
		"samples":  n,
		"features": d,
		"epochs":   m.config.Epochs,
	}).Debug("Fitted logistic regression")

	return nil
}

// PredictProba returns an n×2 matrix of class-0/class-1 probabilities
func (m *LogisticRegression) PredictProba(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	if !m.Fitted() {
		return nil, errors.NewPreconditionError(errors.ErrNotTrained, "%s must be fitted before prediction", m.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, d := x.Dims()
	if d != m.weights.Len() {
		return nil, errors.NewPreconditionError(errors.ErrLengthMismatch,
			"model expects %d features, got %d", m.weights.Len(), d)
	}

	z := mat.NewVecDense(n, nil)
	z.MulVec(standardise(x, m.mean, m.scale), m.weights)

	probs := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := sigmoid(z.AtVec(i) + m.bias)
		probs.Set(i, 0, 1-p)
		probs.Set(i, 1, p)
	}
	return probs, nil
}

// standardise centres and scales each column. Non-finite cells, such as
// missing values, are imputed with the column mean and so map to zero.
func standardise(x mat.Matrix, mean, scale []float64) *mat.Dense {
	xs := mat.DenseCopyOf(x)
	xs.Apply(func(_, j int, v float64) float64 {
		if !isFinite(v) {
			return 0
		}
		return (v - mean[j]) / scale[j]
	}, xs)
	return xs
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (m *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(epochs=%d, lr=%g, l2=%g)", m.config.Epochs, m.config.LearningRate, m.config.L2)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
