package insights

import (
	"fmt"
	"math"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const (
	minAnomalyRecords     = 10
	categoryZThreshold    = 2.5
	minCategoryRecords    = 3
	globalConfidenceCap   = 0.95
	categoryConfidenceCap = 0.90
)

// severityFor grades a z-score relative to the threshold that flagged it.
func severityFor(z, threshold float64) domain.Severity {
	switch {
	case z > threshold*2:
		return domain.SeverityHigh
	case z > threshold*1.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// detectStatistical runs the global and the per-category z-score scans.
func detectStatistical(records []domain.NormalizedRecord, threshold float64) []domain.AnomalyFinding {
	if len(records) < minAnomalyRecords {
		return nil
	}

	var findings []domain.AnomalyFinding

	amounts := absAmounts(records)
	avg := mean(amounts)
	if sd := populationStdDev(amounts); sd > 0 {
		for _, rec := range records {
			z := math.Abs(rec.AbsAmount-avg) / sd
			if z <= threshold {
				continue
			}
			expected := avg
			findings = append(findings, domain.AnomalyFinding{
				TransactionID:  rec.ID,
				Kind:           domain.AnomalyUnusualAmount,
				Severity:       severityFor(z, threshold),
				Confidence:     math.Min(globalConfidenceCap, z/5.0),
				Description:    fmt.Sprintf("Transaction amount $%.2f is unusually high", rec.AbsAmount),
				ExpectedValue:  &expected,
				ActualValue:    rec.AbsAmount,
				Score:          z,
				Recommendation: fmt.Sprintf("Review this $%.2f transaction at %s", rec.AbsAmount, rec.Merchant),
			})
		}
	}

	order, groups := groupBy(records, func(r domain.NormalizedRecord) string { return r.Category })
	for _, category := range order {
		group := groups[category]
		if len(group) < minCategoryRecords {
			continue
		}
		catAmounts := absAmounts(group)
		catMean := mean(catAmounts)
		catSD := populationStdDev(catAmounts)
		if catSD == 0 {
			continue
		}
		for _, rec := range group {
			z := math.Abs(rec.AbsAmount-catMean) / catSD
			if z <= categoryZThreshold {
				continue
			}
			expected := catMean
			findings = append(findings, domain.AnomalyFinding{
				TransactionID:  rec.ID,
				Kind:           domain.AnomalyUnusualAmount,
				Severity:       severityFor(z, categoryZThreshold),
				Confidence:     math.Min(categoryConfidenceCap, z/4.0),
				Description:    fmt.Sprintf("Unusual %s spending: $%.2f", category, rec.AbsAmount),
				ExpectedValue:  &expected,
				ActualValue:    rec.AbsAmount,
				Score:          z,
				Recommendation: fmt.Sprintf("This %s transaction is %.1fx above normal", category, z),
			})
		}
	}

	return findings
}

func absAmounts(records []domain.NormalizedRecord) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = rec.AbsAmount
	}
	return out
}

// groupBy buckets records by key, returning keys in order of first appearance.
func groupBy(records []domain.NormalizedRecord, key func(domain.NormalizedRecord) string) ([]string, map[string][]domain.NormalizedRecord) {
	var order []string
	groups := make(map[string][]domain.NormalizedRecord)
	for _, rec := range records {
		k := key(rec)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}
	return order, groups
}
