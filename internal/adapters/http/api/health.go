package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/revsched/pkg/metrics"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	policyVersion string
	metrics       http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(policyVersion string) *HealthHandler {
	return &HealthHandler{
		policyVersion: policyVersion,
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	PolicyVersion string `json:"policy_version"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", PolicyVersion: h.policyVersion})
}

// HandleMetrics serves the custom Prometheus registry on GET /metrics.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
