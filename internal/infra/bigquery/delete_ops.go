package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

// DeleteReportsBefore removes every report generated before cutoff together
// with its findings. Rows still in the streaming buffer cannot be deleted,
// so cutoff should be at least a few hours in the past.
func (r *Repository) DeleteReportsBefore(ctx context.Context, cutoff time.Time) error {
	// Findings first, then the report headers they belong to.
	for _, table := range []string{anomaliesTable, risingPaymentsTable} {
		if err := r.deleteBefore(ctx, table, "detected_at", cutoff); err != nil {
			return fmt.Errorf("DeleteReportsBefore: deleting %s: %w", table, err)
		}
	}

	if err := r.deleteBefore(ctx, reportsTable, "generated_at", cutoff); err != nil {
		return fmt.Errorf("DeleteReportsBefore: deleting %s: %w", reportsTable, err)
	}

	return nil
}

func (r *Repository) deleteBefore(ctx context.Context, table, column string, cutoff time.Time) error {
	return r.runDML(ctx, `
		DELETE FROM `+r.tableRef(table)+`
		WHERE `+column+` < @cutoff
	`, bigquery.QueryParameter{Name: "cutoff", Value: cutoff.UTC()})
}
