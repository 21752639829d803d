package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/store"
	"google.golang.org/api/iterator"
)

// SaveReport streams a report into insight_reports and its findings into
// anomaly_findings and rising_payments. The header row goes last so a reader
// that finds a report also finds its findings.
func (r *Repository) SaveReport(ctx context.Context, report *domain.InsightReport) error {
	header, anomalies, rising, err := reportRows(report)
	if err != nil {
		return fmt.Errorf("SaveReport: %w", err)
	}

	if len(anomalies) > 0 {
		if err := r.inserter(anomaliesTable).Put(ctx, anomalies); err != nil {
			return fmt.Errorf("SaveReport: inserting anomaly findings: %w", err)
		}
	}

	if len(rising) > 0 {
		if err := r.inserter(risingPaymentsTable).Put(ctx, rising); err != nil {
			return fmt.Errorf("SaveReport: inserting rising payments: %w", err)
		}
	}

	if err := r.inserter(reportsTable).Put(ctx, header); err != nil {
		return fmt.Errorf("SaveReport: inserting report: %w", err)
	}

	return nil
}

// GetLatestReport returns the user's most recent report or store.ErrNotFound.
func (r *Repository) GetLatestReport(ctx context.Context, userID string) (*domain.InsightReport, error) {
	q := r.client.Query(`
		SELECT TO_JSON_STRING(payload) AS payload
		FROM ` + r.tableRef(reportsTable) + `
		WHERE user_id = @user_id
		ORDER BY generated_at DESC, report_id DESC
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetLatestReport: query read: %w", err)
	}

	var row struct {
		Payload string `bigquery:"payload"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetLatestReport: user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatestReport: iter next: %w", err)
	}

	var report domain.InsightReport
	if err := json.Unmarshal([]byte(row.Payload), &report); err != nil {
		return nil, fmt.Errorf("GetLatestReport: decoding payload: %w", err)
	}

	return &report, nil
}

var _ store.ReportStore = (*Repository)(nil)
