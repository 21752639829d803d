package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/forecast"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/dvloznov/spend-insights/internal/tagging"
	"github.com/dvloznov/spend-insights/internal/trends"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Analyzer runs every analysis over one user's transactions and bundles the
// results into a report.
type Analyzer struct {
	engine     *insights.Engine
	summarizer *trends.Summarizer
	tagger     *tagging.Tagger
	forecaster *forecast.Forecaster
	log        zerolog.Logger
	now        func() time.Time
}

// NewAnalyzer wires the analyses together.
func NewAnalyzer(engine *insights.Engine, summarizer *trends.Summarizer, tagger *tagging.Tagger, forecaster *forecast.Forecaster, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		engine:     engine,
		summarizer: summarizer,
		tagger:     tagger,
		forecaster: forecaster,
		log:        log,
		now:        time.Now,
	}
}

// NewDefaultAnalyzer builds an Analyzer from default components and no
// classifier.
func NewDefaultAnalyzer(cfg insights.Config, log zerolog.Logger) (*Analyzer, error) {
	engine, err := insights.NewEngine(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("NewDefaultAnalyzer: %w", err)
	}
	return NewAnalyzer(
		engine,
		trends.NewSummarizer(nil, log),
		tagging.NewTagger(nil, log),
		forecast.NewForecaster(log),
		log,
	), nil
}

// Engine returns the underlying detection engine.
func (a *Analyzer) Engine() *insights.Engine { return a.engine }

// Summarizer returns the weekly summarizer.
func (a *Analyzer) Summarizer() *trends.Summarizer { return a.summarizer }

// Tagger returns the merchant tagger.
func (a *Analyzer) Tagger() *tagging.Tagger { return a.tagger }

// Forecaster returns the spending forecaster.
func (a *Analyzer) Forecaster() *forecast.Forecaster { return a.forecaster }

// Analyze runs the full analysis set. Any malformed transaction fails the
// whole report.
func (a *Analyzer) Analyze(ctx context.Context, userID string, txns []domain.Transaction) (*domain.InsightReport, error) {
	log := a.log.With().Str("user_id", userID).Int("transactions", len(txns)).Logger()
	log.Info().Msg("Starting analysis")

	anomalies, err := a.engine.DetectAnomalies(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: anomalies: %w", err)
	}
	rising, err := a.engine.DetectRisingPayments(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: rising payments: %w", err)
	}
	changes, err := a.engine.DetectSubscriptionChanges(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: subscription changes: %w", err)
	}
	summary, err := a.summarizer.WeeklySummary(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: weekly summary: %w", err)
	}
	tags, err := a.tagger.AutoTag(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: merchant tags: %w", err)
	}
	projection, err := a.forecaster.Forecast(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("Analyze: forecast: %w", err)
	}

	report := &domain.InsightReport{
		ReportID:            uuid.NewString(),
		UserID:              userID,
		GeneratedAt:         a.now().UTC(),
		TransactionCount:    len(txns),
		Anomalies:           anomalies,
		RisingPayments:      rising,
		SubscriptionChanges: changes,
		WeeklySummary:       summary,
		MerchantTags:        tags,
		Forecast:            projection,
	}

	log.Info().
		Str("report_id", report.ReportID).
		Int("anomalies", len(anomalies)).
		Int("rising_payments", len(rising)).
		Int("merchant_tags", len(tags)).
		Msg("Analysis complete")

	return report, nil
}
