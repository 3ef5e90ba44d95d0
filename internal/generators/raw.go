package generators

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
)

// Raw is the identity generator: it releases a sample of the very records
// it was fitted on
type Raw struct {
	logger  *logrus.Logger
	metrics *metrics.Collector
	dataset interfaces.Dataset
}

// NewRaw creates an unfitted raw generator
func NewRaw(logger *logrus.Logger, collector *metrics.Collector) *Raw {
	if logger == nil {
		logger = logrus.New()
	}
	return &Raw{logger: logger, metrics: collector}
}

// Name implements interfaces.Generator
func (g *Raw) Name() string {
	return "Raw"
}

// Fit implements interfaces.Generator
func (g *Raw) Fit(ctx context.Context, dataset interfaces.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied, err := dataset.Empty().Concat(dataset)
	if err != nil {
		return err
	}
	g.dataset = copied
	return nil
}

// Generate draws numRecords records without replacement from the fitted data
func (g *Raw) Generate(ctx context.Context, numRecords int, seed uint64) (interfaces.Dataset, error) {
	if g.dataset == nil {
		return nil, errors.NewPreconditionError(errors.ErrNotTrained, "generator %s must be fitted before generating", g.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := g.dataset.Sample(interfaces.SampleOptions{N: numRecords, Seed: seed})
	g.metrics.RecordGeneration(constants.GeneratorTypeRaw, err)
	if err != nil {
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"generator": g.Name(),
		"records":   numRecords,
	}).Debug("Generated synthetic dataset")

	return out, nil
}
