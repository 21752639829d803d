package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dvloznov/spend-insights/internal/jobs"
	"github.com/dvloznov/spend-insights/internal/pipeline"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// userRunner analyses one user.
type userRunner interface {
	Run(ctx context.Context, userID string, limit int) (*pipeline.PipelineState, error)
}

var _ userRunner = (*pipeline.Pipeline)(nil)

// runOnce analyses every user directly, at most parallel at a time, and
// returns how many runs failed.
func runOnce(ctx context.Context, runner userRunner, userIDs []string, limit, parallel int, log zerolog.Logger) int {
	if parallel < 1 {
		parallel = 1
	}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, userID := range userIDs {
		g.Go(func() error {
			state, err := runner.Run(gctx, userID, limit)
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("user_id", userID).Msg("Analysis failed")
				return nil
			}
			log.Info().
				Str("user_id", userID).
				Str("report_id", state.Report.ReportID).
				Strs("warnings", state.Warnings).
				Msg("Analysis completed")
			return nil
		})
	}
	_ = g.Wait()

	return int(failed.Load())
}

// enqueueUsers publishes one analysis job per user and returns how many
// were accepted. A failed publish is logged and the rest still go out.
func enqueueUsers(ctx context.Context, pub jobs.Publisher, userIDs []string, limit int, log zerolog.Logger) int {
	queued := 0
	for _, userID := range userIDs {
		job := &jobs.AnalyzeUserJob{UserID: userID, TransactionLimit: limit}
		if err := pub.PublishAnalyzeUser(ctx, job); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue scheduled analysis")
			continue
		}
		queued++
	}
	return queued
}

// runEvery calls fn immediately and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
