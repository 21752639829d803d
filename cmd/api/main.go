package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/spend-insights/internal/api/handlers"
	"github.com/dvloznov/spend-insights/internal/api/middleware"
	"github.com/dvloznov/spend-insights/internal/app"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/jobs/inmemory"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/pipeline"
)

// maxRequestBytes caps request bodies. Batches larger than this are rejected
// before decoding.
const maxRequestBytes = 32 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Flags override the environment
	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		workers = flag.Int("workers", 2, "Number of analysis job workers")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(inmemory.WithMaxFinishedJobs(1000))
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(*workers),
		inmemory.WithLogger(log),
	)

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, pipeline.JobHandler(services.Pipeline)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Create router
	mux := http.NewServeMux()
	handlers.Register(mux, handlers.Handlers{
		Health:   handlers.NewHealthHandler(services.HealthInfo()),
		Analysis: handlers.NewAnalysisHandler(services.Analyzer, cfg.MaxTransactionsPerRequest, log),
		Jobs:     handlers.NewJobsHandler(jobStore, jobQueue, log),
		Insights: handlers.NewInsightsHandler(services.Reports, log),
	})

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, log),
		middleware.MaxBytes(maxRequestBytes),
	)

	// Analysis requests may run up to the request timeout
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      http.TimeoutHandler(handler, cfg.RequestTimeout, `{"error":"request timed out"}`),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
