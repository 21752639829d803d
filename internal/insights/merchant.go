package insights

import (
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const (
	merchantZThreshold      = 2.0
	minProfileRecords       = 2
	minMerchantCheckRecords = 3
)

// MerchantProfile is a merchant's baseline within one batch.
type MerchantProfile struct {
	Key          string
	Count        int
	Mean         float64
	StdDev       float64 // sample standard deviation
	ModeCategory string
}

// MerchantKey folds case and surrounding whitespace out of a merchant name.
func MerchantKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildMerchantProfiles profiles every merchant with at least two records.
func BuildMerchantProfiles(records []domain.NormalizedRecord) map[string]MerchantProfile {
	order, groups := groupBy(records, func(r domain.NormalizedRecord) string { return MerchantKey(r.Merchant) })

	profiles := make(map[string]MerchantProfile, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) < minProfileRecords {
			continue
		}
		amounts := absAmounts(group)
		profiles[key] = MerchantProfile{
			Key:          key,
			Count:        len(group),
			Mean:         mean(amounts),
			StdDev:       SampleStdDev(amounts),
			ModeCategory: modeCategory(group),
		}
	}
	return profiles
}

// modeCategory picks the most frequent category, the lexically smallest on ties.
func modeCategory(records []domain.NormalizedRecord) string {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Category]++
	}
	best, bestCount := "", 0
	for category, count := range counts {
		if count > bestCount || (count == bestCount && category < best) {
			best, bestCount = category, count
		}
	}
	return best
}

// detectMerchant flags amounts far from the merchant's own baseline.
func detectMerchant(records []domain.NormalizedRecord) []domain.AnomalyFinding {
	profiles := BuildMerchantProfiles(records)

	var findings []domain.AnomalyFinding
	for _, rec := range records {
		profile, ok := profiles[MerchantKey(rec.Merchant)]
		if !ok || profile.StdDev <= 0 || profile.Count < minMerchantCheckRecords {
			continue
		}
		z := math.Abs(rec.AbsAmount-profile.Mean) / profile.StdDev
		if z <= merchantZThreshold {
			continue
		}
		expected := profile.Mean
		findings = append(findings, domain.AnomalyFinding{
			TransactionID:  rec.ID,
			Kind:           domain.AnomalyUnusualAmount,
			Severity:       severityFor(z, merchantZThreshold),
			Confidence:     math.Min(0.85, z/3.0),
			Description:    fmt.Sprintf("Unusual amount for %s: $%.2f", rec.Merchant, rec.AbsAmount),
			ExpectedValue:  &expected,
			ActualValue:    rec.AbsAmount,
			Score:          z,
			Recommendation: fmt.Sprintf("This amount is unusual for %s (typical: $%.2f)", rec.Merchant, profile.Mean),
		})
	}
	return findings
}
