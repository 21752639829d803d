// Package app builds the service graph shared by the API server, the worker
// and the CLI from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/dvloznov/spend-insights/internal/analysis"
	"github.com/dvloznov/spend-insights/internal/backend"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/forecast"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/spend-insights/internal/infra/bigquery"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/dvloznov/spend-insights/internal/notify"
	"github.com/dvloznov/spend-insights/internal/pipeline"
	"github.com/dvloznov/spend-insights/internal/store"
	"github.com/dvloznov/spend-insights/internal/store/sqlite"
	"github.com/dvloznov/spend-insights/internal/tagging"
	"github.com/dvloznov/spend-insights/internal/trends"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Services holds the long-lived collaborators of the analysis service.
type Services struct {
	Config   *config.Config
	Analyzer *analysis.Analyzer
	Reports  store.ReportStore
	Backend  *backend.Client
	Pipeline *pipeline.Pipeline

	// Repository is set when BigQuery is used as the store or the
	// transaction source.
	Repository *infraBQ.Repository

	closers []io.Closer
}

// New wires the services described by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg}

	analyzer, err := s.newAnalyzer(ctx, log)
	if err != nil {
		return nil, s.fail(err)
	}
	s.Analyzer = analyzer

	s.Backend = backend.NewClient(cfg.BackendURL, cfg.RequestTimeout, log)

	reports, err := s.newReportStore(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.Reports = reports

	deps := pipeline.Deps{
		Source:    s.Backend,
		Analyzer:  s.Analyzer,
		Store:     s.Reports,
		Publisher: s.Backend,
	}

	if cfg.TransactionSource == config.SourceBigQuery {
		repo, err := s.repository(ctx)
		if err != nil {
			return nil, s.fail(err)
		}
		deps.Source = repo
	}

	if cfg.ReportBucket != "" {
		exporter, err := gcsuploader.NewReportExporter(ctx, cfg.ReportBucket)
		if err != nil {
			return nil, s.fail(fmt.Errorf("report exporter: %w", err))
		}
		s.closers = append(s.closers, exporter)
		deps.Exporter = exporter
	}

	notifier, err := s.newNotifier(log)
	if err != nil {
		return nil, s.fail(err)
	}
	deps.Notifier = notifier

	p, err := pipeline.NewAnalysisPipeline(deps)
	if err != nil {
		return nil, s.fail(err)
	}
	s.Pipeline = p

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("source", cfg.TransactionSource).
		Bool("export", deps.Exporter != nil).
		Bool("classifier", cfg.GeminiModel != "").
		Msg("Services initialized")

	return s, nil
}

func (s *Services) newAnalyzer(ctx context.Context, log zerolog.Logger) (*analysis.Analyzer, error) {
	engine, err := insights.NewEngine(s.Config.Insights(), log)
	if err != nil {
		return nil, fmt.Errorf("insights engine: %w", err)
	}

	var classifier tagging.Classifier
	if s.Config.GeminiModel != "" {
		gc, err := tagging.NewGeminiClassifier(ctx, s.Config.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("merchant classifier: %w", err)
		}
		classifier = gc
	}

	return analysis.NewAnalyzer(
		engine,
		trends.NewSummarizer(nil, log),
		tagging.NewTagger(classifier, log),
		forecast.NewForecaster(log),
		log,
	), nil
}

func (s *Services) newReportStore(ctx context.Context) (store.ReportStore, error) {
	var reports store.ReportStore

	switch s.Config.StoreBackend {
	case config.StoreSQLite:
		db, err := sqlite.Open(s.Config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		s.closers = append(s.closers, db)
		reports = db
	case config.StoreBigQuery:
		repo, err := s.repository(ctx)
		if err != nil {
			return nil, err
		}
		reports = repo
	default:
		reports = store.NewMemoryStore()
	}

	if s.Config.CacheTTL > 0 {
		reports = store.NewCachedReportStore(reports, s.Config.CacheTTL)
	}
	return reports, nil
}

// repository opens the BigQuery repository once and shares it between the
// store and the transaction source.
func (s *Services) repository(ctx context.Context) (*infraBQ.Repository, error) {
	if s.Repository != nil {
		return s.Repository, nil
	}
	repo, err := infraBQ.NewRepository(ctx, s.Config.ProjectID, s.Config.Dataset)
	if err != nil {
		return nil, fmt.Errorf("bigquery repository: %w", err)
	}
	s.closers = append(s.closers, repo)
	s.Repository = repo
	return repo, nil
}

// newNotifier always includes the backend webhook and adds Discord and email
// when they are configured.
func (s *Services) newNotifier(log zerolog.Logger) (notify.Notifier, error) {
	notifiers := notify.Multi{s.Backend}

	if s.Config.DiscordBotToken != "" {
		d, err := notify.NewDiscordNotifier(s.Config.DiscordBotToken, s.Config.DiscordChannelID, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, d)
	}

	if s.Config.MailgunDomain != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(
			s.Config.MailgunDomain,
			s.Config.MailgunAPIKey,
			s.Config.AlertSender,
			s.Config.AlertEmail,
			log,
		))
	}

	return notifiers, nil
}

// HealthInfo describes the configured backends for the health endpoint.
func (s *Services) HealthInfo() map[string]string {
	return map[string]string{
		"report_store":       s.Config.StoreBackend,
		"transaction_source": s.Config.TransactionSource,
	}
}

// Close releases every opened client.
func (s *Services) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

func (s *Services) fail(err error) error {
	if cerr := s.Close(); cerr != nil {
		return multierror.Append(err, cerr)
	}
	return err
}
