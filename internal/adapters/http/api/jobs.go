package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/revsched/internal/app"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/pkg/logger"
)

// JobDependencies defines the interface for asynchronous job operations.
type JobDependencies interface {
	Submit(ctx context.Context, doc model.Document) (service.Submission, error)
	Job(ctx context.Context, id string) (model.Result, error)
}

// JobsHandler handles job submission and polling.
type JobsHandler struct {
	deps     JobDependencies
	maxBytes int64
	logger   logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies, maxBytes int64, l logger.Logger) *JobsHandler {
	return &JobsHandler{deps: deps, maxBytes: maxBytes, logger: l}
}

// HandleSubmit handles POST /v1/jobs requests.
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	doc, _, status, err := decodeDocument(w, r, h.maxBytes)
	if err != nil {
		writeError(w, status, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.Submit(r.Context(), doc)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "submit failed", logger.String("document_id", doc.ID), logger.Error(err))
		}
		writeError(w, status, code, Wrap(op, err))
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, sub)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

// HandleGet handles GET /v1/jobs/{id} requests.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	res, err := h.deps.Job(r.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
