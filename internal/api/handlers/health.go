package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/spend-insights/internal/api/middleware"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	services map[string]string
	now      func() time.Time
}

// NewHealthHandler creates a health handler listing the active analyses plus
// any extra service states.
func NewHealthHandler(extra map[string]string) *HealthHandler {
	services := map[string]string{
		"forecasting":       "active",
		"anomaly_detection": "active",
		"merchant_tagging":  "active",
		"trend_analysis":    "active",
		"payment_analysis":  "active",
	}
	for name, state := range extra {
		services[name] = state
	}
	return &HealthHandler{services: services, now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().Format(time.RFC3339),
		"services":  h.services,
	})
}
