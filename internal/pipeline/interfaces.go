package pipeline

import (
	"context"

	"github.com/dvloznov/spend-insights/internal/domain"
)

// TransactionSource provides a user's recent transactions.
// Implemented by the backend client and the BigQuery repository.
type TransactionSource interface {
	FetchTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

// ReportAnalyzer turns transactions into an insight report.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, userID string, txns []domain.Transaction) (*domain.InsightReport, error)
}

// ReportSaver persists a finished report.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *domain.InsightReport) error
}

// ReportExporter archives a report and returns where it was written.
type ReportExporter interface {
	ExportReport(ctx context.Context, report *domain.InsightReport) (string, error)
}

// AnomalyNotifier alerts someone about anomalies found for a user.
type AnomalyNotifier interface {
	NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error
}

// InsightsPublisher pushes report results back to the ledger backend.
type InsightsPublisher interface {
	SendInsightsUpdate(ctx context.Context, userID string, report *domain.InsightReport) error
	UpdateMerchantCategories(ctx context.Context, userID string, suggestions []domain.MerchantTagSuggestion) error
}
