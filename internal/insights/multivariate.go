package insights

import (
	"fmt"
	"math"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const minMultivariateRecords = 20

// detectMultivariate scores every record with a freshly fit isolation forest
// and reports those below the contamination cut-off.
func detectMultivariate(records []domain.NormalizedRecord, cfg Config) []domain.AnomalyFinding {
	if len(records) < minMultivariateRecords {
		return nil
	}

	features := standardize(featureMatrix(records))
	forest := fitIsolationForest(features, cfg.Trees, cfg.MaxSamples, cfg.Seed)
	scores := forest.scoreSamples(features)
	offset := percentile(scores, 100*cfg.Contamination)

	var findings []domain.AnomalyFinding
	for i, rec := range records {
		decision := scores[i] - offset
		if decision >= 0 {
			continue
		}
		findings = append(findings, domain.AnomalyFinding{
			TransactionID:  rec.ID,
			Kind:           domain.AnomalyUnusualMerchant,
			Severity:       severityFromDecision(decision),
			Confidence:     math.Min(0.95, math.Abs(decision)*2),
			Description:    fmt.Sprintf("ML detected unusual transaction pattern at %s", rec.Merchant),
			ActualValue:    rec.AbsAmount,
			Score:          decision,
			Recommendation: "Review this transaction - unusual for your spending patterns",
		})
	}
	return findings
}

func severityFromDecision(score float64) domain.Severity {
	switch {
	case score < -0.3:
		return domain.SeverityHigh
	case score < -0.1:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// featureMatrix builds [amount, hour, weekday, day of month, merchant count,
// category count] per record.
func featureMatrix(records []domain.NormalizedRecord) [][]float64 {
	merchantCounts := make(map[string]int)
	categoryCounts := make(map[string]int)
	for _, rec := range records {
		merchantCounts[rec.Merchant]++
		categoryCounts[rec.Category]++
	}

	rows := make([][]float64, len(records))
	for i, rec := range records {
		rows[i] = []float64{
			rec.AbsAmount,
			float64(rec.Hour),
			float64(rec.DayOfWeek),
			float64(rec.DayOfMonth),
			float64(merchantCounts[rec.Merchant]),
			float64(categoryCounts[rec.Category]),
		}
	}
	return rows
}

// standardize rescales each column to zero mean and unit population variance.
// Constant columns are centred only.
func standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, width)
	}

	column := make([]float64, len(rows))
	for f := 0; f < width; f++ {
		for i, row := range rows {
			column[i] = row[f]
		}
		m := mean(column)
		sd := populationStdDev(column)
		if sd == 0 {
			sd = 1
		}
		for i, row := range rows {
			out[i][f] = (row[f] - m) / sd
		}
	}
	return out
}
