package handlers

import "net/http"

// Handlers groups the endpoint handlers mounted by Register.
type Handlers struct {
	Health   *HealthHandler
	Analysis *AnalysisHandler
	Jobs     *JobsHandler
	Insights *InsightsHandler
}

// Register mounts every route on mux. Routes whose handler is nil are skipped.
func Register(mux *http.ServeMux, h Handlers) {
	if h.Health != nil {
		mux.HandleFunc("GET /health", h.Health.Health)
	}

	if h.Analysis != nil {
		mux.HandleFunc("POST /anomalies/detect", h.Analysis.DetectAnomalies)
		mux.HandleFunc("POST /payments/rising-detection", h.Analysis.DetectRisingPayments)
		mux.HandleFunc("POST /payments/subscription-changes", h.Analysis.DetectSubscriptionChanges)
		mux.HandleFunc("POST /insights/weekly-summary", h.Analysis.WeeklySummary)
		mux.HandleFunc("POST /merchants/auto-tag", h.Analysis.AutoTagMerchants)
		mux.HandleFunc("POST /forecast/advanced", h.Analysis.Forecast)
	}

	if h.Jobs != nil {
		mux.HandleFunc("POST /users/{user_id}/analyze", h.Jobs.EnqueueAnalysis)
		mux.HandleFunc("GET /jobs", h.Jobs.ListJobs)
		mux.HandleFunc("GET /jobs/{job_id}", h.Jobs.GetJob)
	}

	if h.Insights != nil {
		mux.HandleFunc("GET /users/{user_id}/insights", h.Insights.LatestReport)
	}
}
