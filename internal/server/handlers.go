package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mia/internal/datasets"
	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/generators"
	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/internal/observability/health"
	"github.com/inferloop/mia/internal/storage"
	"github.com/inferloop/mia/pkg/constants"
	"github.com/inferloop/mia/pkg/errors"
	"github.com/inferloop/mia/pkg/models"
)

// Handlers serves the REST API
type Handlers struct {
	evaluator  *evaluation.Evaluator
	store      *storage.DatasetStore
	generators *generators.Factory
	jobs       *jobs.Queue
	health     *health.Checker
	logger     *logrus.Logger
	startTime  time.Time
}

// NewHandlers creates the API handlers. A nil queue disables the job endpoints.
func NewHandlers(evaluator *evaluation.Evaluator, store *storage.DatasetStore, factory *generators.Factory, queue *jobs.Queue, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.New()
	}
	h := &Handlers{
		evaluator:  evaluator,
		store:      store,
		generators: factory,
		jobs:       queue,
		health:     health.NewChecker(constants.DefaultHealthTimeout, logger),
		logger:     logger,
		startTime:  time.Now(),
	}
	if store != nil {
		h.health.Register(health.NewBasicCheck("storage", func(ctx context.Context) error {
			_, err := store.Backend().Exists(ctx, constants.HealthProbeKey)
			return err
		}, true, 0))
	}
	return h
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status    health.Status            `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Timestamp time.Time                `json:"timestamp"`
	Storage   string                   `json:"storage,omitempty"`
	Checks    map[string]health.Result `json:"checks,omitempty"`
}

// DatasetUpload is the body of PUT /datasets/{name}
type DatasetUpload struct {
	Description *models.DataDescription `json:"description"`
	// CSV holds headerless rows
	CSV string `json:"csv"`
}

// DatasetInfo describes a stored dataset
type DatasetInfo struct {
	Name        string                  `json:"name"`
	Records     int                     `json:"records"`
	Description *models.DataDescription `json:"description"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Run(r.Context())
	resp := HealthResponse{
		Status:    report.Status,
		Version:   constants.AppVersion,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: report.CheckedAt,
		Checks:    report.Checks,
	}
	if h.store != nil {
		resp.Storage = h.store.Backend().Type()
	}

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

// CreateEvaluation handles POST /evaluations
func (h *Handlers) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req evaluation.Request
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListDatasets handles GET /datasets
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": names,
		"count":    len(names),
	})
}

// GetDataset handles GET /datasets/{name}
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ds, err := h.store.Load(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), constants.MimeTypeCSV) {
		w.Header().Set(constants.HeaderContentType, constants.MimeTypeCSV)
		w.WriteHeader(http.StatusOK)
		if err := ds.WriteCSV(w); err != nil {
			h.logger.WithError(err).Error("Failed to stream dataset")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, DatasetInfo{
		Name:        name,
		Records:     ds.Len(),
		Description: ds.Description(),
	})
}

// PutDataset handles PUT /datasets/{name}
func (h *Handlers) PutDataset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var upload DatasetUpload
	if err := h.decode(r, &upload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if upload.Description == nil {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidSchema, "description is required"))
		return
	}

	ds, err := datasets.ReadCSVString(upload.CSV, upload.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.Save(r.Context(), name, ds); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, DatasetInfo{
		Name:        name,
		Records:     ds.Len(),
		Description: ds.Description(),
	})
}

// DeleteDataset handles DELETE /datasets/{name}
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGenerators handles GET /generators
func (h *Handlers) ListGenerators(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"generators": h.generators.GetAvailableGenerators(),
	})
}

// NotFound handles unknown routes
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, errors.NewAppError(errors.ErrorTypeLookup, errors.CodeLookup, "route not found: "+r.URL.Path))
}

func (h *Handlers) decode(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidFormat, "invalid request body")
	}
	return nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		appErr = errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "internal error")
	}

	status := appErr.HTTPStatus
	switch {
	case errors.Is(err, errors.ErrDataNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}

	fields := logrus.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"error_type": appErr.Type,
		"request_id": getRequestID(r),
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithFields(fields).WithError(err).Error("Request failed")
	} else {
		h.logger.WithFields(fields).WithError(err).Debug("Request rejected")
	}

	h.writeJSON(w, status, errors.ErrorResponse{
		Error: &errors.AppError{
			Type:    appErr.Type,
			Code:    appErr.Code,
			Message: err.Error(),
			Context: appErr.Context,
		},
		RequestID: getRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}
