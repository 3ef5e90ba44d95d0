package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inferloop/mia/internal/evaluation"
	"github.com/inferloop/mia/internal/jobs"
	"github.com/inferloop/mia/pkg/errors"
)

const defaultClaimLimit = 1

// SubmitJob handles POST /jobs
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req evaluation.Request
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.store != nil && req.Dataset != "" {
		exists, err := h.store.Exists(r.Context(), req.Dataset)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !exists {
			h.writeError(w, r, errors.NewLookupError(errors.ErrDataNotFound, "dataset %s not found", req.Dataset))
			return
		}
	}

	job, err := h.jobs.Submit(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, job)
}

// ListJobs handles GET /jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list := h.jobs.List(jobs.Status(r.URL.Query().Get("status")))
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// ClaimJobs handles GET /worker/jobs?worker_id=&limit=
func (h *Handlers) ClaimJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultClaimLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "invalid limit"))
			return
		}
		limit = n
	}

	claimed, err := h.jobs.Claim(query.Get("worker_id"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, claimed)
}

// UpdateJobStatus handles PUT /worker/jobs/{id}/status
func (h *Handlers) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var update jobs.StatusUpdate
	if err := h.decode(r, &update); err != nil {
		h.writeError(w, r, err)
		return
	}

	job, err := h.jobs.Update(mux.Vars(r)["id"], update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}
