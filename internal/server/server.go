package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/observability/metrics"
	"github.com/inferloop/mia/pkg/constants"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     *Config
	handlers   *Handlers
	metrics    *metrics.Collector
}

// NewServer creates a new HTTP server instance
func NewServer(config *Config, handlers *Handlers, collector *metrics.Collector, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.New()
	}

	server := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   config,
		handlers: handlers,
		metrics:  collector,
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         config.GetAddress(),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server, nil
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Infof("Starting HTTP server on %s", s.config.GetAddress())

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error shutting down HTTP server: %v", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the HTTP router
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)

	if s.config.EnableMetrics && s.metrics != nil {
		s.router.Handle(s.config.MetricsPath, s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix(constants.APIPrefix).Subrouter()

	api.HandleFunc("/evaluations", s.handlers.CreateEvaluation).Methods(http.MethodPost)

	api.HandleFunc("/datasets", s.handlers.ListDatasets).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}", s.handlers.GetDataset).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}", s.handlers.PutDataset).Methods(http.MethodPut)
	api.HandleFunc("/datasets/{name}", s.handlers.DeleteDataset).Methods(http.MethodDelete)

	api.HandleFunc("/generators", s.handlers.ListGenerators).Methods(http.MethodGet)

	if s.handlers.jobs != nil {
		api.HandleFunc("/jobs", s.handlers.SubmitJob).Methods(http.MethodPost)
		api.HandleFunc("/jobs", s.handlers.ListJobs).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{id}", s.handlers.GetJob).Methods(http.MethodGet)

		api.HandleFunc("/worker/jobs", s.handlers.ClaimJobs).Methods(http.MethodGet)
		api.HandleFunc("/worker/jobs/{id}/status", s.handlers.UpdateJobStatus).Methods(http.MethodPut)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
}
