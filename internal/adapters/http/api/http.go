// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/revsched/internal/adapters/repository"
	service "github.com/okian/revsched/internal/app"
	"github.com/okian/revsched/internal/domain/extraction"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	NormalizeDependencies
	JobDependencies
	ReviewDependencies
	PolicyVersion() string
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	normalizeHandler *NormalizeHandler
	jobsHandler      *JobsHandler
	reviewHandler    *ReviewHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		maxReviewLimit:  defaultMaxReviewLimit,
		maxRequestBytes: defaultMaxRequestBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:    NewHealthHandler(deps.PolicyVersion()),
		statsHandler:     NewStatsHandler(statsProvider),
		normalizeHandler: NewNormalizeHandler(deps, cfg.maxRequestBytes, cfg.logger),
		jobsHandler:      NewJobsHandler(deps, cfg.maxRequestBytes, cfg.logger),
		reviewHandler:    NewReviewHandler(deps, cfg.maxReviewLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/normalize", MetricsMiddleware(s.normalizeHandler.HandleNormalize, "normalize"))
	mux.HandleFunc("/v1/jobs", MetricsMiddleware(s.jobsHandler.HandleSubmit, "jobs_submit"))
	mux.HandleFunc("/v1/jobs/", MetricsMiddleware(s.jobsHandler.HandleGet, "jobs_get"))
	mux.HandleFunc("/v1/review", MetricsMiddleware(s.reviewHandler.HandleReview, "review"))
}

// documentRequest mirrors the OpenAPI schema shared by POST /v1/normalize
// and POST /v1/jobs. Each run is either a JSON object or a string holding
// raw model text.
type documentRequest struct {
	DocumentID string            `json:"document_id"`
	Runs       []json.RawMessage `json:"runs"`
	Full       bool              `json:"full"`
}

func (d documentRequest) document() (model.Document, error) {
	if len(d.Runs) == 0 {
		return model.Document{}, errors.New("runs must not be empty")
	}
	doc := model.Document{
		ID:   strings.TrimSpace(d.DocumentID),
		Runs: make([]extraction.Run, 0, len(d.Runs)),
	}
	for i, raw := range d.Runs {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return model.Document{}, fmt.Errorf("runs[%d]: %w", i, err)
		}
		run, err := extraction.FromValue(v)
		if err != nil {
			return model.Document{}, fmt.Errorf("runs[%d]: %w", i, err)
		}
		doc.Runs = append(doc.Runs, run)
	}
	return doc, nil
}

// decodeDocument reads a bounded request body into a Document. The
// returned status is meaningful only when err is non-nil.
func decodeDocument(w http.ResponseWriter, r *http.Request, limit int64) (model.Document, bool, int, error) {
	var req documentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Document{}, false, http.StatusRequestEntityTooLarge, err
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return model.Document{}, false, http.StatusBadRequest, err
	}
	doc, err := req.document()
	if err != nil {
		return model.Document{}, false, http.StatusBadRequest, err
	}
	return doc, req.Full, http.StatusOK, nil
}

// garageResponse is the default POST /v1/normalize body: the canonical
// records plus what a caller needs to decide on a retry.
type garageResponse struct {
	DocumentID    string          `json:"document_id,omitempty"`
	Garage        []garage.Record `json:"garage"`
	ShouldRetry   bool            `json:"should_retry"`
	Issues        []string        `json:"issues"`
	PolicyVersion string          `json:"policy_version"`
}

// fullResponse adds the review material to the canonical records.
type fullResponse struct {
	DocumentID string `json:"document_id,omitempty"`
	pipeline.Output
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor translates upstream errors into HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
