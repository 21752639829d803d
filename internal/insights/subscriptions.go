package insights

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const subscriptionChangeThreshold = 15.0

var subscriptionKeywords = []string{
	"netflix", "spotify", "hulu", "disney", "amazon prime",
	"apple music", "youtube", "subscription", "monthly",
}

// DetectSubscriptionChanges reports plan upgrades and downgrades: consecutive
// charges from a subscription merchant that differ by more than 15%.
func (e *Engine) DetectSubscriptionChanges(ctx context.Context, txns []domain.Transaction) ([]domain.SubscriptionChange, error) {
	records, err := NormalizeSpending(txns)
	if err != nil {
		return nil, fmt.Errorf("DetectSubscriptionChanges: %w", err)
	}

	changes := []domain.SubscriptionChange{}
	order, groups := groupBy(records, func(r domain.NormalizedRecord) string { return r.Merchant })
	for _, merchant := range order {
		if !isSubscriptionMerchant(merchant) {
			continue
		}
		group := groups[merchant]
		for i := 1; i < len(group); i++ {
			prev, curr := group[i-1].AbsAmount, group[i].AbsAmount
			if prev <= 0 {
				continue
			}
			pct := math.Abs(curr-prev) / prev * 100
			if pct <= subscriptionChangeThreshold {
				continue
			}
			changeType := "downgrade"
			if curr > prev {
				changeType = "upgrade"
			}
			changes = append(changes, domain.SubscriptionChange{
				Merchant:      merchant,
				Date:          group[i].Timestamp.Format(dateLayout),
				OldAmount:     Round(prev, 2),
				NewAmount:     Round(curr, 2),
				ChangeType:    changeType,
				ChangePercent: Round(pct, 1),
			})
		}
	}
	return changes, nil
}

func isSubscriptionMerchant(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range subscriptionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
