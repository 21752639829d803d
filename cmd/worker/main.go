package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		workers = flag.Int("workers", 2, "Number of analysis job workers")
		limit   = flag.Int("limit", 0, "Transactions fetched per user (0 uses the backend default)")
		once    = flag.Bool("once", false, "Analyse every user once and exit")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if len(cfg.AnalysisUserIDs) == 0 {
		log.Fatal().Msg("ANALYSIS_USER_IDS is empty, nothing to schedule")
	}

	services, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Initialize job store and queue
	jobStore := inmemory.NewStore(inmemory.WithMaxFinishedJobs(1000))
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(*workers),
		inmemory.WithLogger(log),
	)

	log.Info().
		Strs("users", cfg.AnalysisUserIDs).
		Dur("interval", cfg.AnalysisInterval).
		Msg("Starting worker service")

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		failed := runOnce(ctx, services.Pipeline, cfg.AnalysisUserIDs, *limit, *workers, log)
		if failed > 0 {
			log.Fatal().Int("failed", failed).Msg("Analysis round finished with failures")
		}
		log.Info().Msg("Analysis round finished")
		return
	}

	if err := jobQueue.Start(ctx, pipeline.JobHandler(services.Pipeline)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	go runEvery(ctx, cfg.AnalysisInterval, func(ctx context.Context) {
		n := enqueueUsers(ctx, jobQueue, cfg.AnalysisUserIDs, *limit, log)
		log.Info().Int("queued", n).Msg("Scheduled analysis round")
	})

	log.Info().Msg("Worker service started, waiting for jobs...")
	<-ctx.Done()
	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
