package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spend-insights/internal/domain"
	"google.golang.org/api/iterator"
)

const transactionColumns = `
			t.transaction_id,
			t.user_id,
			t.account_id,
			t.transaction_date,
			t.posted_at,
			t.amount,
			t.merchant_name,
			t.category_name,
			t.description,
			t.is_recurring,
			t.created_ts`

// InsertTransactions loads a user's transactions into the transactions table.
func (r *Repository) InsertTransactions(ctx context.Context, userID string, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, 0, len(txns))
	for _, t := range txns {
		row, err := TransactionRowFromDomain(userID, t, now)
		if err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
		rows = append(rows, row)
	}

	if err := r.inserter(transactionsTable).Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// FetchTransactions returns the user's most recent transactions, newest first,
// capped at limit.
func (r *Repository) FetchTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	q := r.client.Query(`
		SELECT` + transactionColumns + `
		FROM ` + r.tableRef(transactionsTable) + ` t
		WHERE t.user_id = @user_id
		ORDER BY t.posted_at DESC, t.transaction_id
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: limit},
	}

	rows, err := readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FetchTransactions: %w", err)
	}
	return toDomain(rows)
}

// QueryTransactionsByDateRange returns a user's transactions posted between
// startDate and endDate inclusive, oldest first.
func (r *Repository) QueryTransactionsByDateRange(ctx context.Context, userID string, startDate, endDate time.Time) ([]domain.Transaction, error) {
	q := r.client.Query(`
		SELECT` + transactionColumns + `
		FROM ` + r.tableRef(transactionsTable) + ` t
		WHERE t.user_id = @user_id
		  AND t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		ORDER BY t.posted_at, t.transaction_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	rows, err := readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: %w", err)
	}
	return toDomain(rows)
}

func readTransactionRows(ctx context.Context, q *bigquery.Query) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

func toDomain(rows []*TransactionRow) ([]domain.Transaction, error) {
	txns := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}
