package insights

import (
	"fmt"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
)

const (
	offHoursStart = 2
	offHoursEnd   = 5
	burstSize     = 5
	burstSpan     = time.Hour
)

// detectTemporal flags off-hours activity and the first burst of rapid
// transactions. Later bursts in the same batch are not reported.
func detectTemporal(records []domain.NormalizedRecord) []domain.AnomalyFinding {
	var findings []domain.AnomalyFinding

	for _, rec := range records {
		if rec.Hour < offHoursStart || rec.Hour > offHoursEnd {
			continue
		}
		findings = append(findings, domain.AnomalyFinding{
			TransactionID:  rec.ID,
			Kind:           domain.AnomalyUnusualTiming,
			Severity:       domain.SeverityMedium,
			Confidence:     0.70,
			Description:    fmt.Sprintf("Transaction at unusual time: %02d:00", rec.Hour),
			ActualValue:    float64(rec.Hour),
			Recommendation: "Verify this transaction wasn't unauthorized",
		})
	}

	for i := 0; i+burstSize <= len(records); i++ {
		window := records[i : i+burstSize]
		if window[burstSize-1].Timestamp.Sub(window[0].Timestamp) > burstSpan {
			continue
		}
		for _, rec := range window {
			findings = append(findings, domain.AnomalyFinding{
				TransactionID:  rec.ID,
				Kind:           domain.AnomalyUnusualFrequency,
				Severity:       domain.SeverityHigh,
				Confidence:     0.80,
				Description:    "High transaction frequency detected",
				ActualValue:    burstSize,
				Recommendation: "Multiple transactions in short time - verify legitimacy",
			})
		}
		break
	}

	return findings
}
