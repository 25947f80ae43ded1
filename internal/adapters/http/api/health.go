package api

import (
	"net/http"

	"github.com/elevenvotes/consensus/pkg/metrics"
)

// HealthHandler serves liveness plus the Prometheus exposition.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a health handler over the global registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{metrics: metrics.Handler()}
}

// HandleHealth handles GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
