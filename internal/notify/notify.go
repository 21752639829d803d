package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/hashicorp/go-multierror"
)

// Notifier delivers anomaly alerts for one user.
type Notifier interface {
	NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error
}

// Multi fans alerts out to several notifiers. Every notifier is tried and
// the failures are returned together.
type Multi []Notifier

// NotifyAnomalies implements Notifier.
func (m Multi) NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error {
	var result *multierror.Error
	for _, n := range m {
		if err := n.NotifyAnomalies(ctx, userID, anomalies); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// AtLeast keeps the findings whose severity is min or higher.
func AtLeast(anomalies []domain.AnomalyFinding, min domain.Severity) []domain.AnomalyFinding {
	out := []domain.AnomalyFinding{}
	for _, a := range anomalies {
		if a.Severity.Rank() >= min.Rank() {
			out = append(out, a)
		}
	}
	return out
}

// FormatAmount renders a money value with thousands separators.
func FormatAmount(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Subject is the one-line summary of an alert.
func Subject(userID string, anomalies []domain.AnomalyFinding) string {
	noun := "anomalies"
	if len(anomalies) == 1 {
		noun = "anomaly"
	}
	return fmt.Sprintf("%d spending %s detected for %s", len(anomalies), noun, userID)
}

// Body renders one line per finding followed by its recommendation.
func Body(userID string, anomalies []domain.AnomalyFinding) string {
	var b strings.Builder
	b.WriteString(Subject(userID, anomalies))
	b.WriteString("\n")
	for _, a := range anomalies {
		fmt.Fprintf(&b, "\n[%s] %s: %s (amount %s",
			strings.ToUpper(string(a.Severity)), a.TransactionID, a.Description, FormatAmount(a.ActualValue))
		if a.ExpectedValue != nil {
			fmt.Fprintf(&b, ", expected %s", FormatAmount(*a.ExpectedValue))
		}
		b.WriteString(")")
		if a.Recommendation != "" {
			b.WriteString("\n  ")
			b.WriteString(a.Recommendation)
		}
	}
	return b.String()
}

var _ Notifier = Multi(nil)
