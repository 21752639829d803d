package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/config"
	infraBQ "github.com/dvloznov/spend-insights/internal/infra/bigquery"
	"github.com/rs/zerolog"
)

const inspectDefaultDays = 90

func openRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) *infraBQ.Repository {
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT_ID is required for BigQuery commands")
	}
	repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	return repo
}

// dateRange parses the inspect window. Empty bounds default to the last
// inspectDefaultDays days ending today.
func dateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -to: %w", err)
		}
		end = t
	}

	start := end.AddDate(0, 0, -inspectDefaultDays)
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -from: %w", err)
		}
		start = t
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}
