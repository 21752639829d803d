package insights

import (
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/shopspring/decimal"
)

var baseTime = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func txn(id string, at time.Time, amount float64, merchant, category string) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		PostedAt:     at.Format(time.RFC3339),
		Amount:       decimal.NewFromFloat(amount),
		MerchantName: merchant,
		Category:     category,
	}
}

// dailySpending returns n outflows of the given amount, one per day at noon,
// each at its own merchant.
func dailySpending(n int, amount float64, category string) []domain.Transaction {
	txns := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txns = append(txns, txn(
			fmt.Sprintf("d%02d", i),
			baseTime.AddDate(0, 0, i),
			-amount,
			fmt.Sprintf("Store %d", i),
			category,
		))
	}
	return txns
}

func mustNormalize(txns []domain.Transaction) []domain.NormalizedRecord {
	records, err := Normalize(txns)
	if err != nil {
		panic(err)
	}
	return records
}

func findingsFor(findings []domain.AnomalyFinding, id string) []domain.AnomalyFinding {
	var out []domain.AnomalyFinding
	for _, f := range findings {
		if f.TransactionID == id {
			out = append(out, f)
		}
	}
	return out
}
