package insights

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const (
	minPaymentTransactions = 10
	minPaymentGroup        = 3
	minTrendSlope          = 0.5
	maxRisingPayments      = 10
	dateLayout             = "2006-01-02"
)

// DetectRisingPayments finds recurring merchant charges whose amounts trend
// upward. At most ten findings are returned, largest increase first.
func (e *Engine) DetectRisingPayments(ctx context.Context, txns []domain.Transaction) ([]domain.RisingPaymentFinding, error) {
	if len(txns) < minPaymentTransactions {
		return []domain.RisingPaymentFinding{}, nil
	}

	records, err := NormalizeSpending(txns)
	if err != nil {
		return nil, fmt.Errorf("DetectRisingPayments: %w", err)
	}

	_, groups := groupBy(records, func(r domain.NormalizedRecord) string { return r.Merchant })
	merchants := make([]string, 0, len(groups))
	for merchant := range groups {
		merchants = append(merchants, merchant)
	}
	sort.Strings(merchants)

	findings := []domain.RisingPaymentFinding{}
	for _, merchant := range merchants {
		group := groups[merchant]
		if len(group) < minPaymentGroup {
			continue
		}
		if finding, ok := e.analyzeMerchantPayments(merchant, group); ok {
			findings = append(findings, finding)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].IncreasePercentage > findings[j].IncreasePercentage
	})
	if len(findings) > maxRisingPayments {
		findings = findings[:maxRisingPayments]
	}

	e.log.Debug().
		Int("spending_records", len(records)).
		Int("merchants", len(merchants)).
		Int("findings", len(findings)).
		Msg("Rising payment detection finished")

	return findings, nil
}

// analyzeMerchantPayments expects group sorted by timestamp.
func (e *Engine) analyzeMerchantPayments(merchant string, group []domain.NormalizedRecord) (domain.RisingPaymentFinding, bool) {
	gaps := dayGaps(group)
	if !isRecurring(gaps) {
		return domain.RisingPaymentFinding{}, false
	}

	amounts := absAmounts(group)
	slope, _ := LinearFit(amounts)
	if slope <= minTrendSlope {
		return domain.RisingPaymentFinding{}, false
	}

	first, last := amounts[0], amounts[len(amounts)-1]
	increase := last - first
	increasePct := 0.0
	if first > 0 {
		increasePct = increase / first * 100
	}
	if increasePct < e.cfg.RisingPaymentThreshold {
		return domain.RisingPaymentFinding{}, false
	}

	frequency := paymentFrequency(gaps)
	return domain.RisingPaymentFinding{
		MerchantName:       merchant,
		Category:           group[len(group)-1].Category,
		CurrentAmount:      Round(last, 2),
		PreviousAmount:     Round(first, 2),
		IncreasePercentage: Round(increasePct, 1),
		IncreaseAmount:     Round(increase, 2),
		Frequency:          frequency,
		Confidence:         paymentConfidence(len(group), slope, increasePct, gaps),
		FirstDetected:      group[0].Timestamp.Format(dateLayout),
		LastPayment:        group[len(group)-1].Timestamp.Format(dateLayout),
		Recommendation:     risingRecommendation(merchant, increasePct, frequency),
	}, true
}

// dayGaps returns whole days between consecutive records, truncated.
func dayGaps(records []domain.NormalizedRecord) []float64 {
	if len(records) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		elapsed := records[i].Timestamp.Sub(records[i-1].Timestamp)
		gaps = append(gaps, math.Floor(elapsed.Hours()/24))
	}
	return gaps
}

// isRecurring accepts a steady cadence between weekly and quarterly, or a
// mostly monthly one.
func isRecurring(gaps []float64) bool {
	if len(gaps) < 2 {
		return false
	}
	avg := mean(gaps)
	if avg >= 7 && avg <= 90 && populationStdDev(gaps) < avg*0.3 {
		return true
	}

	monthly := 0
	for _, gap := range gaps {
		if gap >= 25 && gap <= 35 {
			monthly++
		}
	}
	return float64(monthly) >= float64(len(gaps))*0.7
}

func paymentFrequency(gaps []float64) string {
	if len(gaps) == 0 {
		return domain.FrequencyUnknown
	}
	avg := mean(gaps)
	switch {
	case avg <= 10:
		return domain.FrequencyWeekly
	case avg >= 25 && avg <= 35:
		return domain.FrequencyMonthly
	case avg >= 85 && avg <= 95:
		return domain.FrequencyQuarterly
	case avg >= 350:
		return domain.FrequencyYearly
	default:
		return fmt.Sprintf("every_%d_days", int(math.Round(avg)))
	}
}

func paymentConfidence(count int, slope, increasePct float64, gaps []float64) float64 {
	confidence := 0.5
	confidence += math.Min(0.2, float64(count)/50)
	confidence += math.Min(0.2, slope/10)
	confidence += math.Min(0.2, increasePct/100)
	if hasConsistentGaps(gaps) {
		confidence += 0.1
	}
	return clamp(confidence, 0.3, 0.95)
}

func hasConsistentGaps(gaps []float64) bool {
	if len(gaps) < 2 {
		return false
	}
	avg := mean(gaps)
	return avg > 0 && populationStdDev(gaps) < avg*0.2
}

func risingRecommendation(merchant string, increasePct float64, frequency string) string {
	switch {
	case increasePct > 50:
		return fmt.Sprintf("Review your %s payment to %s - it has increased significantly. Consider contacting them about the price change or looking for alternatives.", frequency, merchant)
	case increasePct > 20:
		return fmt.Sprintf("Your %s payment to %s has increased notably. You may want to review your subscription or service plan.", frequency, merchant)
	default:
		return fmt.Sprintf("Your %s payment to %s has increased moderately. This could be due to plan changes or price adjustments.", frequency, merchant)
	}
}
