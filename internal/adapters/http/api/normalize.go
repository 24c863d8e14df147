package api

import (
	"context"
	"net/http"

	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/pkg/logger"
)

// NormalizeDependencies runs the pipeline synchronously.
type NormalizeDependencies interface {
	Process(ctx context.Context, doc model.Document) (pipeline.Output, error)
}

// NormalizeHandler handles synchronous normalization requests.
type NormalizeHandler struct {
	deps     NormalizeDependencies
	maxBytes int64
	logger   logger.Logger
}

// NewNormalizeHandler creates a new normalize handler.
func NewNormalizeHandler(deps NormalizeDependencies, maxBytes int64, l logger.Logger) *NormalizeHandler {
	return &NormalizeHandler{deps: deps, maxBytes: maxBytes, logger: l}
}

// HandleNormalize handles POST /v1/normalize requests.
func (h *NormalizeHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.normalize"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	doc, full, status, err := decodeDocument(w, r, h.maxBytes)
	if err != nil {
		writeError(w, status, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.Process(r.Context(), doc)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "normalize failed", logger.String("document_id", doc.ID), logger.Error(err))
		}
		writeError(w, status, code, Wrap(op, err))
		return
	}

	if full {
		writeJSON(w, http.StatusOK, fullResponse{DocumentID: doc.ID, Output: out})
		return
	}
	writeJSON(w, http.StatusOK, garageResponse{
		DocumentID:    doc.ID,
		Garage:        out.Garage,
		ShouldRetry:   out.ShouldRetry,
		Issues:        out.Issues,
		PolicyVersion: out.PolicyVersion,
	})
}
