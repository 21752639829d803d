package bigquery

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/shopspring/decimal"
)

// numericScale is the number of fractional digits a BigQuery NUMERIC holds.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	AccountID bigquery.NullString `bigquery:"account_id"` // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED, partition column
	PostedAt        time.Time  `bigquery:"posted_at"`        // REQUIRED TIMESTAMP

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC, negative for outflows

	MerchantName bigquery.NullString `bigquery:"merchant_name"` // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE

	IsRecurring bigquery.NullBool `bigquery:"is_recurring"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// TransactionRowFromDomain maps an API transaction to its table row.
// The posted_at string must parse; a bad one is a DataError.
func TransactionRowFromDomain(userID string, t domain.Transaction, created time.Time) (*TransactionRow, error) {
	posted, err := insights.ParseTimestamp(t.PostedAt)
	if err != nil {
		return nil, &domain.DataError{TransactionID: t.ID, Field: "posted_at", Value: t.PostedAt, Err: err}
	}

	return &TransactionRow{
		TransactionID:   t.ID,
		UserID:          userID,
		AccountID:       nullString(t.AccountID),
		TransactionDate: civil.DateOf(posted),
		PostedAt:        posted,
		Amount:          t.Amount.Rat(),
		MerchantName:    nullString(t.MerchantName),
		CategoryName:    nullString(t.Category),
		Description:     nullString(t.Description),
		IsRecurring:     bigquery.NullBool{Bool: t.IsRecurring, Valid: true},
		CreatedTS:       created,
	}, nil
}

// ToDomain maps a stored row back to the transaction shape the analyzers take.
func (r *TransactionRow) ToDomain() (domain.Transaction, error) {
	if r.Amount == nil {
		return domain.Transaction{}, &domain.DataError{
			TransactionID: r.TransactionID,
			Field:         "amount",
			Err:           errors.New("amount is required"),
		}
	}

	amount, err := decimal.NewFromString(r.Amount.FloatString(numericScale))
	if err != nil {
		return domain.Transaction{}, &domain.DataError{
			TransactionID: r.TransactionID,
			Field:         "amount",
			Value:         r.Amount.String(),
			Err:           fmt.Errorf("converting NUMERIC: %w", err),
		}
	}

	return domain.Transaction{
		ID:           r.TransactionID,
		AccountID:    r.AccountID.StringVal,
		PostedAt:     r.PostedAt.UTC().Format(time.RFC3339),
		Amount:       amount,
		MerchantName: r.MerchantName.StringVal,
		Category:     r.CategoryName.StringVal,
		Description:  r.Description.StringVal,
		IsRecurring:  r.IsRecurring.Valid && r.IsRecurring.Bool,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
