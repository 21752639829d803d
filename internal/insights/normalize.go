package insights

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the ledger backend emits.
// Fractional seconds are accepted by every layout that carries seconds.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

// Normalize converts transactions into records sorted ascending by timestamp,
// ties kept in input order. Any unparsable timestamp fails the whole batch.
func Normalize(txns []domain.Transaction) ([]domain.NormalizedRecord, error) {
	records := make([]domain.NormalizedRecord, 0, len(txns))
	for _, txn := range txns {
		ts, err := ParseTimestamp(txn.PostedAt)
		if err != nil {
			return nil, &domain.DataError{
				TransactionID: txn.ID,
				Field:         "posted_at",
				Value:         txn.PostedAt,
				Err:           err,
			}
		}

		amount := txn.Amount.InexactFloat64()
		records = append(records, domain.NormalizedRecord{
			ID:         txn.ID,
			Timestamp:  ts,
			Amount:     amount,
			AbsAmount:  txn.Amount.Abs().InexactFloat64(),
			Category:   txn.Category,
			Merchant:   txn.MerchantName,
			Hour:       ts.Hour(),
			DayOfWeek:  weekdayIndex(ts.Weekday()),
			DayOfMonth: ts.Day(),
			Recurring:  txn.IsRecurring,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// NormalizeSpending normalizes only the outflows (amount < 0).
func NormalizeSpending(txns []domain.Transaction) ([]domain.NormalizedRecord, error) {
	spending := make([]domain.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.IsSpending() {
			spending = append(spending, txn)
		}
	}
	return Normalize(spending)
}

// weekdayIndex maps time.Weekday onto 0=Monday..6=Sunday.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
