package insights

import (
	"sort"

	"github.com/dvloznov/spend-insights/internal/domain"
)

// aggregate keeps the highest-confidence finding per transaction. Ties go to
// the finding emitted first, so detector order decides between equals.
func aggregate(candidates []domain.AnomalyFinding) []domain.AnomalyFinding {
	sorted := append([]domain.AnomalyFinding(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	seen := make(map[string]struct{}, len(sorted))
	unique := make([]domain.AnomalyFinding, 0, len(sorted))
	for _, finding := range sorted {
		if _, dup := seen[finding.TransactionID]; dup {
			continue
		}
		seen[finding.TransactionID] = struct{}{}
		unique = append(unique, finding)
	}
	return unique
}
