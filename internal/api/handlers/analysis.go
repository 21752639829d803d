package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvloznov/spend-insights/internal/analysis"
	"github.com/dvloznov/spend-insights/internal/api/middleware"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/rs/zerolog"
)

// AnalysisHandler serves the stateless analysis endpoints. Each takes a JSON
// array of transactions and returns the analysis result.
type AnalysisHandler struct {
	analyzer        *analysis.Analyzer
	maxTransactions int
	log             zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler. maxTransactions <= 0
// disables the batch size check.
func NewAnalysisHandler(analyzer *analysis.Analyzer, maxTransactions int, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer:        analyzer,
		maxTransactions: maxTransactions,
		log:             log,
	}
}

// DetectAnomalies handles POST /anomalies/detect
func (h *AnalysisHandler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Anomaly detection", h.analyzer.Engine().DetectAnomalies)
}

// DetectRisingPayments handles POST /payments/rising-detection
func (h *AnalysisHandler) DetectRisingPayments(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Rising payment detection", h.analyzer.Engine().DetectRisingPayments)
}

// DetectSubscriptionChanges handles POST /payments/subscription-changes
func (h *AnalysisHandler) DetectSubscriptionChanges(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Subscription change detection", h.analyzer.Engine().DetectSubscriptionChanges)
}

// WeeklySummary handles POST /insights/weekly-summary
func (h *AnalysisHandler) WeeklySummary(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Weekly summary", h.analyzer.Summarizer().WeeklySummary)
}

// AutoTagMerchants handles POST /merchants/auto-tag
func (h *AnalysisHandler) AutoTagMerchants(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Merchant tagging", h.analyzer.Tagger().AutoTag)
}

// Forecast handles POST /forecast/advanced
func (h *AnalysisHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, "Forecasting", h.analyzer.Forecaster().Forecast)
}

// serve decodes the transaction batch, runs fn and writes its result.
func serve[T any](h *AnalysisHandler, w http.ResponseWriter, r *http.Request, name string, fn func(context.Context, []domain.Transaction) (T, error)) {
	txns, ok := h.decodeTransactions(w, r)
	if !ok {
		return
	}

	result, err := fn(r.Context(), txns)
	if err != nil {
		h.writeAnalysisError(w, r, name, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// decodeTransactions reads the request body. On failure it writes the error
// response and returns false.
func (h *AnalysisHandler) decodeTransactions(w http.ResponseWriter, r *http.Request) ([]domain.Transaction, bool) {
	var txns []domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txns); err != nil {
		var maxBytesErr *http.MaxBytesError
		var dataErr *domain.DataError
		switch {
		case errors.As(err, &maxBytesErr):
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		case errors.As(err, &dataErr):
			middleware.WriteError(w, http.StatusUnprocessableEntity, dataErr.Error())
		default:
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		}
		return nil, false
	}

	if h.maxTransactions > 0 && len(txns) > h.maxTransactions {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Too many transactions: %d exceeds the limit of %d", len(txns), h.maxTransactions))
		return nil, false
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, true
}

func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, r *http.Request, name string, err error) {
	var dataErr *domain.DataError
	if errors.As(err, &dataErr) {
		middleware.WriteError(w, http.StatusUnprocessableEntity, dataErr.Error())
		return
	}

	h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg(name + " failed")

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		middleware.WriteError(w, http.StatusServiceUnavailable, name+" timed out")
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("%s failed: %v", name, err))
}
