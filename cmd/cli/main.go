package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/rs/zerolog"
)

// analysisFunc is one of the single analyses exposed as a subcommand.
type analysisFunc func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error)

func wrap[T any](fn func(context.Context, []domain.Transaction) (T, error)) func(context.Context, []domain.Transaction) (interface{}, error) {
	return func(ctx context.Context, txns []domain.Transaction) (interface{}, error) {
		return fn(ctx, txns)
	}
}

var analyses = map[string]analysisFunc{
	"anomalies": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Engine().DetectAnomalies)
	},
	"rising": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Engine().DetectRisingPayments)
	},
	"subscriptions": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Engine().DetectSubscriptionChanges)
	},
	"summary": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Summarizer().WeeklySummary)
	},
	"tag": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Tagger().AutoTag)
	},
	"forecast": func(s *app.Services) func(context.Context, []domain.Transaction) (interface{}, error) {
		return wrap(s.Analyzer.Forecaster().Forecast)
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Output: os.Stderr})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	// Results go to stdout, so logs go to stderr
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	cmd := os.Args[1]
	if fn, ok := analyses[cmd]; ok {
		runSingle(cfg, log, cmd, fn)
		return
	}

	switch cmd {
	case "analyze":
		runAnalyze(cfg, log)
	case "latest":
		runLatest(cfg, log)
	case "upload":
		runUpload(log)
	case "load":
		runLoad(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "purge":
		runPurge(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Spend Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze        Build a full insight report from a transactions file")
	fmt.Println("  anomalies      Detect anomalous transactions")
	fmt.Println("  rising         Detect rising recurring payments")
	fmt.Println("  subscriptions  Detect subscription price changes")
	fmt.Println("  summary        Summarize the most recent week")
	fmt.Println("  tag            Suggest merchant categories")
	fmt.Println("  forecast       Forecast spending for the next 30 days")
	fmt.Println("  latest         Print the latest stored report for a user")
	fmt.Println("  upload         Upload a transactions file to GCS")
	fmt.Println("  load           Load a transactions file into BigQuery")
	fmt.Println("  inspect        List a user's transactions from BigQuery")
	fmt.Println("  purge          Delete stored reports older than a cutoff from BigQuery")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nTransaction files are JSON, read from a local path or a gs:// URI.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func newServices(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app.Services {
	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	return services
}

func runSingle(cfg *config.Config, log zerolog.Logger, name string, analysis analysisFunc) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	file := fs.String("file", "", "Transactions JSON file (local path or gs:// URI)")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msgf("Usage: cli %s -file PATH", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	txns, err := loadTransactions(ctx, gcsuploader.NewGCSStorageService(), *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}
	log.Info().Str("source", sourceName(*file)).Int("transactions", len(txns)).Msg("Loaded transactions")

	services := newServices(ctx, cfg, log)
	defer services.Close()

	result, err := analysis(services)(ctx, txns)
	if err != nil {
		log.Fatal().Err(err).Str("command", name).Msg("Analysis failed")
	}

	if err := writeJSON(os.Stdout, result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}

func runAnalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "Transactions JSON file (local path or gs:// URI)")
	userID := fs.String("user", "local", "User ID recorded on the report")
	save := fs.Bool("save", false, "Save the report to the configured store")
	export := fs.Bool("export", false, "Export the report to REPORT_BUCKET")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli analyze -file PATH [-user ID] [-save] [-export]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	txns, err := loadTransactions(ctx, gcsuploader.NewGCSStorageService(), *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}
	log.Info().Str("source", sourceName(*file)).Int("transactions", len(txns)).Msg("Loaded transactions")

	services := newServices(ctx, cfg, log)
	defer services.Close()

	report, err := services.Analyzer.Analyze(ctx, *userID, txns)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	if *save {
		if err := services.Reports.SaveReport(ctx, report); err != nil {
			log.Fatal().Err(err).Msg("Failed to save report")
		}
		log.Info().Str("report_id", report.ReportID).Str("store", cfg.StoreBackend).Msg("Report saved")
	}

	if *export {
		if cfg.ReportBucket == "" {
			log.Fatal().Msg("REPORT_BUCKET is required for -export")
		}
		exporter, err := gcsuploader.NewReportExporter(ctx, cfg.ReportBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report exporter")
		}
		defer exporter.Close()

		uri, err := exporter.ExportReport(ctx, report)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export report")
		}
		log.Info().Str("uri", uri).Msg("Report exported")
	}

	if err := writeJSON(os.Stdout, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
}

func runLatest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	services := newServices(ctx, cfg, log)
	defer services.Close()

	report, err := services.Reports.GetLatestReport(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Str("user_id", *userID).Msg("Failed to load latest report")
	}

	if err := writeJSON(os.Stdout, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to transactions/<filename>)")
	filePath := fs.String("file", "", "Path to local transactions file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = "transactions/" + filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	// Refuse files the analysis commands could not read back
	storage := gcsuploader.NewGCSStorageService()
	if _, err := loadTransactions(ctx, storage, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Refusing to upload invalid transactions file")
	}

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runLoad(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	file := fs.String("file", "", "Transactions JSON file (local path or gs:// URI)")
	userID := fs.String("user", "", "User ID owning the transactions")
	fs.Parse(os.Args[2:])

	if *file == "" || *userID == "" {
		log.Fatal().Msg("Usage: cli load -file PATH -user ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	txns, err := loadTransactions(ctx, gcsuploader.NewGCSStorageService(), *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load transactions")
	}
	log.Info().Str("source", sourceName(*file)).Int("transactions", len(txns)).Msg("Loaded transactions")

	repo := openRepository(ctx, cfg, log)
	defer repo.Close()

	if err := repo.InsertTransactions(ctx, *userID, txns); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert transactions")
	}

	fmt.Printf("Loaded %d transactions for user %s.\n", len(txns), *userID)
}

func runInspect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	from := fs.String("from", "", "Start date YYYY-MM-DD (defaults to 90 days ago)")
	to := fs.String("to", "", "End date YYYY-MM-DD (defaults to today)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	now := time.Now().UTC()
	startDate, endDate, err := dateRange(*from, *to, now)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date range")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo := openRepository(ctx, cfg, log)
	defer repo.Close()

	txns, err := repo.QueryTransactionsByDateRange(ctx, *userID, startDate, endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	printTransactions(os.Stdout, txns, now)
}

func runPurge(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	days := fs.Int("older-than-days", 180, "Delete reports generated more than this many days ago")
	fs.Parse(os.Args[2:])

	if *days <= 0 {
		log.Fatal().Msg("Error: --older-than-days must be positive")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo := openRepository(ctx, cfg, log)
	defer repo.Close()

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	if err := repo.DeleteReportsBefore(ctx, cutoff); err != nil {
		log.Fatal().Err(err).Msg("Purge failed")
	}

	fmt.Printf("Deleted reports generated before %s.\n", cutoff.Format(time.RFC3339))
}
