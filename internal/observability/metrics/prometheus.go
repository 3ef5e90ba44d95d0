package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/pkg/constants"
)

// Config configures the collector
type Config struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path      string `json:"path" yaml:"path" mapstructure:"path"`
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
	Subsystem string `json:"subsystem" yaml:"subsystem" mapstructure:"subsystem"`
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "mia",
	}
}

// Collector owns a private Prometheus registry. All methods are safe on a
// nil *Collector so components can run without metrics.
type Collector struct {
	logger   *logrus.Logger
	config   *Config
	registry *prometheus.Registry

	attackTrainTotal     *prometheus.CounterVec
	attackTrainDuration  *prometheus.HistogramVec
	attackInferenceTotal *prometheus.CounterVec
	attackGuessesTotal   *prometheus.CounterVec
	generationTotal      *prometheus.CounterVec
	storageOpsTotal      *prometheus.CounterVec
	storageDuration      *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	evaluationsTotal     *prometheus.CounterVec
	evaluationAdvantage  *prometheus.GaugeVec
}

// NewCollector creates and registers all metrics
func NewCollector(config *Config, logger *logrus.Logger) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	c := &Collector{
		logger:   logger,
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	c.initializeMetrics()

	if err := c.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordTraining records one attack training run
func (c *Collector) RecordTraining(attack string, samples int, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.attackTrainTotal.WithLabelValues(attack, status(err)).Inc()
	c.attackTrainDuration.WithLabelValues(attack).Observe(duration.Seconds())

	c.logger.WithFields(logrus.Fields{
		"attack":   attack,
		"samples":  samples,
		"duration": duration,
	}).Debug("Recorded attack training")
}

// RecordInference records an Attack or AttackScore call over n datasets
func (c *Collector) RecordInference(attack, operation string, n int, err error) {
	if c == nil {
		return
	}
	c.attackInferenceTotal.WithLabelValues(attack, operation, status(err)).Add(float64(n))
}

// RecordGuesses counts binary guesses by value
func (c *Collector) RecordGuesses(attack string, guesses []int) {
	if c == nil {
		return
	}
	for _, g := range guesses {
		c.attackGuessesTotal.WithLabelValues(attack, fmt.Sprint(g)).Inc()
	}
}

// RecordGeneration records one synthetic dataset generation
func (c *Collector) RecordGeneration(generator string, err error) {
	if c == nil {
		return
	}
	c.generationTotal.WithLabelValues(generator, status(err)).Inc()
}

// RecordStorageOperation records a storage backend call
func (c *Collector) RecordStorageOperation(backend, operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	c.storageOpsTotal.WithLabelValues(backend, operation, status(err)).Inc()
	c.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records one API request
func (c *Collector) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, fmt.Sprint(code)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEvaluation records a completed evaluation and its attack advantage
func (c *Collector) RecordEvaluation(attack string, advantage float64, err error) {
	if c == nil {
		return
	}
	c.evaluationsTotal.WithLabelValues(attack, status(err)).Inc()
	if err == nil {
		c.evaluationAdvantage.WithLabelValues(attack).Set(advantage)
	}
}

func (c *Collector) initializeMetrics() {
	namespace := c.config.Namespace
	subsystem := c.config.Subsystem

	c.attackTrainTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attack_train_total",
			Help:      "Total number of attack training runs",
		},
		[]string{"attack", "status"},
	)

	c.attackTrainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attack_train_duration_seconds",
			Help:      "Attack training duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"attack"},
	)

	c.attackInferenceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attack_inference_datasets_total",
			Help:      "Total number of datasets scored by an attack",
		},
		[]string{"attack", "operation", "status"},
	)

	c.attackGuessesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attack_guesses_total",
			Help:      "Total number of membership guesses by value",
		},
		[]string{"attack", "guess"},
	)

	c.generationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_total",
			Help:      "Total number of synthetic datasets generated",
		},
		[]string{"generator", "status"},
	)

	c.storageOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "storage_operation_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "operation"},
	)

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluations_total",
			Help:      "Total number of attack evaluations",
		},
		[]string{"attack", "status"},
	)

	c.evaluationAdvantage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluation_advantage",
			Help:      "Membership advantage (TPR - FPR) of the last evaluation",
		},
		[]string{"attack"},
	)
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.attackTrainTotal,
		c.attackTrainDuration,
		c.attackInferenceTotal,
		c.attackGuessesTotal,
		c.generationTotal,
		c.storageOpsTotal,
		c.storageDuration,
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.evaluationsTotal,
		c.evaluationAdvantage,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return constants.MetricStatusError
	}
	return constants.MetricStatusSuccess
}
