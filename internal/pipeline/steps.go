package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/notify"
)

// PipelineStep represents a single step in the analysis pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID       string
	Limit        int
	Transactions []domain.Transaction
	Report       *domain.InsightReport
	ExportURI    string

	// Warnings collects failures of best-effort steps. They do not fail the run.
	Warnings []string
}

func (s *PipelineState) warn(step string, err error) {
	s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", step, err))
}

var errNoReport = errors.New("no report in pipeline state")

// Step 1: FetchTransactionsStep loads the user's recent transactions.
type FetchTransactionsStep struct {
	Source TransactionSource
}

func (s *FetchTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	txns, err := s.Source.FetchTransactions(ctx, state.UserID, state.Limit)
	if err != nil {
		return fmt.Errorf("fetching transactions: %w", err)
	}
	state.Transactions = txns
	log := logger.FromContext(ctx)
	log.Debug().Int("transactions", len(txns)).Msg("Fetched transactions")
	return nil
}

// Step 2: AnalyzeStep builds the insight report.
type AnalyzeStep struct {
	Analyzer ReportAnalyzer
}

func (s *AnalyzeStep) Execute(ctx context.Context, state *PipelineState) error {
	report, err := s.Analyzer.Analyze(ctx, state.UserID, state.Transactions)
	if err != nil {
		return fmt.Errorf("analyzing transactions: %w", err)
	}
	state.Report = report
	return nil
}

// Step 3: PersistReportStep stores the report so the latest-insights
// endpoint can serve it.
type PersistReportStep struct {
	Store ReportSaver
}

func (s *PersistReportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return errNoReport
	}
	if err := s.Store.SaveReport(ctx, state.Report); err != nil {
		return fmt.Errorf("saving report %s: %w", state.Report.ReportID, err)
	}
	return nil
}

// Step 4: ExportReportStep archives the report to object storage. Best effort.
type ExportReportStep struct {
	Exporter ReportExporter
}

func (s *ExportReportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return errNoReport
	}
	uri, err := s.Exporter.ExportReport(ctx, state.Report)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("report_id", state.Report.ReportID).Msg("Failed to export report")
		state.warn("export", err)
		return nil
	}
	state.ExportURI = uri
	return nil
}

// Step 5: NotifyAnomaliesStep alerts on anomalies at or above MinSeverity.
// Best effort.
type NotifyAnomaliesStep struct {
	Notifier    AnomalyNotifier
	MinSeverity domain.Severity
}

func (s *NotifyAnomaliesStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return errNoReport
	}
	min := s.MinSeverity
	if min == "" {
		min = domain.SeverityHigh
	}

	alerts := notify.AtLeast(state.Report.Anomalies, min)
	if len(alerts) == 0 {
		return nil
	}
	if err := s.Notifier.NotifyAnomalies(ctx, state.UserID, alerts); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int("anomalies", len(alerts)).Msg("Failed to send anomaly alerts")
		state.warn("notify", err)
	}
	return nil
}

// Step 6: PushInsightsStep sends the report and category suggestions back to
// the backend. Best effort.
type PushInsightsStep struct {
	Publisher InsightsPublisher
}

func (s *PushInsightsStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Report == nil {
		return errNoReport
	}
	log := logger.FromContext(ctx)

	if err := s.Publisher.SendInsightsUpdate(ctx, state.UserID, state.Report); err != nil {
		log.Warn().Err(err).Msg("Failed to push insights update")
		state.warn("push insights", err)
	}

	if len(state.Report.MerchantTags) == 0 {
		return nil
	}
	if err := s.Publisher.UpdateMerchantCategories(ctx, state.UserID, state.Report.MerchantTags); err != nil {
		log.Warn().Err(err).Msg("Failed to push merchant category suggestions")
		state.warn("push categories", err)
	}
	return nil
}
