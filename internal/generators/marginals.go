package generators

import (
	"context"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/interfaces"
	"github.com/inferloop/mia/pkg/models"
)

// Marginals samples every column independently from its empirical
// distribution in the fitted data. It keeps the marginals and destroys all
// correlation between columns.
type Marginals struct {
	logger      *logrus.Logger
	metrics     *metrics.Collector
	description *models.DataDescription
	columns     [][]models.Value
}

// NewMarginals creates an unfitted marginals generator
func NewMarginals(logger *logrus.Logger, collector *metrics.Collector) *Marginals {
	if logger == nil {
		logger = logrus.New()
	}
	return &Marginals{logger: logger, metrics: collector}
}

// Name implements interfaces.Generator
func (g *Marginals) Name() string {
	return "IndependentMarginals"
}

// Fit implements interfaces.Generator
func (g *Marginals) Fit(ctx context.Context, dataset interfaces.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dataset.Len() == 0 {
		return errors.NewPreconditionError(errors.ErrEmptyInput, "cannot fit %s on an empty dataset", g.Name())
	}

	desc := dataset.Description()
	columns := make([][]models.Value, desc.NumColumns())
	for rec := range dataset.Records() {
		for col, v := range rec.Row() {
			columns[col] = append(columns[col], v)
		}
	}

	g.description = desc
	g.columns = columns

	g.logger.WithFields(logrus.Fields{
		"generator": g.Name(),
		"records":   dataset.Len(),
		"columns":   desc.NumColumns(),
	}).Debug("Fitted generator")

	return nil
}

// Generate implements interfaces.Generator
func (g *Marginals) Generate(ctx context.Context, numRecords int, seed uint64) (interfaces.Dataset, error) {
	if g.description == nil {
		return nil, errors.NewPreconditionError(errors.ErrNotTrained, "generator %s must be fitted before generating", g.Name())
	}
	if numRecords < 0 {
		return nil, errors.NewPreconditionError(errors.ErrSampleTooLarge, "cannot generate %d records", numRecords)
	}

	rng := newRand(seed)
	rows := make([]models.Row, numRecords)
	for i := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(models.Row, len(g.columns))
		for col, values := range g.columns {
			row[col] = values[rng.IntN(len(values))]
		}
		rows[i] = row
	}

	out, err := datasets.NewTabular(g.description, rows, datasets.WithSeed(rng.Uint64()))
	g.metrics.RecordGeneration(constants.GeneratorTypeMarginals, err)
	return out, err
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
