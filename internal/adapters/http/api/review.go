package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/revsched/internal/domain/model"
)

const defaultReviewLimit = 10

// ReviewDependencies defines the interface for the review queue.
type ReviewDependencies interface {
	ReviewQueue(ctx context.Context, n int) ([]model.Result, error)
}

// ReviewHandler lists finished documents, least confident first.
type ReviewHandler struct {
	deps     ReviewDependencies
	maxLimit int
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(deps ReviewDependencies, maxLimit int) *ReviewHandler {
	return &ReviewHandler{deps: deps, maxLimit: maxLimit}
}

type reviewEntry struct {
	JobID          string  `json:"job_id"`
	DocumentID     string  `json:"document_id,omitempty"`
	MeanConfidence float64 `json:"mean_confidence"`
	Flagged        int     `json:"flagged"`
	ShouldRetry    bool    `json:"should_retry"`
	Issues         int     `json:"issues"`
}

// HandleReview handles GET /v1/review?limit=N requests.
func (h *ReviewHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.review"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultReviewLimit, h.maxLimit)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	results, err := h.deps.ReviewQueue(r.Context(), n)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, Wrap(op, err))
		return
	}
	entries := make([]reviewEntry, 0, len(results))
	for i := range results {
		res := &results[i]
		e := reviewEntry{
			JobID:          res.JobID,
			DocumentID:     res.DocumentID,
			MeanConfidence: res.MeanConfidence(),
		}
		if res.Output != nil {
			e.ShouldRetry = res.Output.ShouldRetry
			e.Issues = len(res.Output.Issues)
			if res.Output.Summary != nil {
				e.Flagged = res.Output.Summary.Flagged
			}
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}
