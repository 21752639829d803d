package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/spend-insights/internal/api/middleware"
	"github.com/dvloznov/spend-insights/internal/store"
	"github.com/rs/zerolog"
)

// InsightsHandler serves stored insight reports.
type InsightsHandler struct {
	store store.ReportStore
	log   zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(reports store.ReportStore, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		store: reports,
		log:   log,
	}
}

// LatestReport handles GET /users/{user_id}/insights
func (h *InsightsHandler) LatestReport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	report, err := h.store.GetLatestReport(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "No insights for user")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load latest report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load insights")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
