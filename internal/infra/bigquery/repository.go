package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable   = "transactions"
	reportsTable        = "insight_reports"
	anomaliesTable      = "anomaly_findings"
	risingPaymentsTable = "rising_payments"
	dateFormat          = "2006-01-02"
)

// Repository reads transactions from and writes insight reports to a single
// BigQuery dataset. It holds a shared client so each operation reuses the
// same connection.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef returns the fully qualified, backquoted name of a table for use in SQL.
func (r *Repository) tableRef(table string) string {
	return qualifiedTable(r.projectID, r.datasetID, table)
}

func qualifiedTable(projectID, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, table)
}

func (r *Repository) inserter(table string) *bigquery.Inserter {
	return r.client.DatasetInProject(r.projectID, r.datasetID).Table(table).Inserter()
}

// runDML runs a statement that returns no rows and waits for it to finish.
func (r *Repository) runDML(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	q := r.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
