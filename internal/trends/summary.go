package trends

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/rs/zerolog"
)

const (
	insufficientDataMessage = "Insufficient data for trend analysis"

	topMerchantLimit       = 5
	minTrendRecords        = 8
	minCategoryRecords     = 4
	overallSlopeThreshold  = 10.0
	strongSlopeThreshold   = 50.0
	categorySlopeThreshold = 5.0
	lookbackWeeks          = 4
)

// DefaultBudgets returns the weekly per-category budgets used when a user has
// not configured their own.
func DefaultBudgets() map[string]float64 {
	return map[string]float64{
		"Food & Dining":     150,
		"Transportation":    100,
		"Shopping":          200,
		"Bills & Utilities": 300,
		"Entertainment":     75,
	}
}

// Summarizer builds weekly spending summaries.
type Summarizer struct {
	budgets map[string]float64
	now     func() time.Time
	log     zerolog.Logger
}

// NewSummarizer returns a Summarizer. A nil budgets map uses DefaultBudgets.
func NewSummarizer(budgets map[string]float64, log zerolog.Logger) *Summarizer {
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	return &Summarizer{budgets: budgets, now: time.Now, log: log}
}

// dayRecord is a normalized record with its calendar date.
type dayRecord struct {
	domain.NormalizedRecord
	Date civil.Date
}

// WeeklySummary summarizes the Monday-to-Sunday week holding the latest
// transaction and compares it with the preceding weeks.
func (s *Summarizer) WeeklySummary(ctx context.Context, txns []domain.Transaction) (*domain.WeeklySummary, error) {
	if len(txns) == 0 {
		return s.emptySummary(), nil
	}

	normalized, err := insights.Normalize(txns)
	if err != nil {
		return nil, fmt.Errorf("WeeklySummary: %w", err)
	}
	records := make([]dayRecord, len(normalized))
	for i, r := range normalized {
		records[i] = dayRecord{NormalizedRecord: r, Date: civil.DateOf(r.Timestamp)}
	}

	latest := records[len(records)-1].Date
	weekStart := startOfWeek(latest)
	weekEnd := weekStart.AddDays(6)

	current := between(records, weekStart, weekEnd)
	if len(current) == 0 {
		return s.emptySummary(), nil
	}

	var spend, income float64
	for _, r := range current {
		switch {
		case r.Amount < 0:
			spend += r.AbsAmount
		case r.Amount > 0:
			income += r.Amount
		}
	}

	byCategory := categorySpending(current)
	summary := &domain.WeeklySummary{
		WeekStart:            weekStart.String(),
		WeekEnd:              weekEnd.String(),
		TotalSpend:           insights.Round(spend, 2),
		TotalIncome:          insights.Round(income, 2),
		NetChange:            insights.Round(income-spend, 2),
		SpendingByCategory:   byCategory,
		TrendAnalysis:        analyzeTrends(records, current),
		WeekOverWeekChange:   insights.Round(spendChange(records, weekStart, weekStart.AddDays(-7)), 2),
		MonthOverMonthChange: insights.Round(spendChange(records, weekStart, weekStart.AddDays(-7*lookbackWeeks)), 2),
		TopMerchants:         topMerchants(current),
		SpendingVelocity:     insights.Round(float64(len(current))/7, 2),
		BudgetPerformance:    s.budgetPerformance(byCategory),
	}

	s.log.Debug().
		Str("week_start", summary.WeekStart).
		Int("transactions", len(current)).
		Float64("total_spend", summary.TotalSpend).
		Msg("Weekly summary built")

	return summary, nil
}

func (s *Summarizer) emptySummary() *domain.WeeklySummary {
	weekStart := startOfWeek(civil.DateOf(s.now()))
	return &domain.WeeklySummary{
		WeekStart:          weekStart.String(),
		WeekEnd:            weekStart.AddDays(6).String(),
		SpendingByCategory: map[string]float64{},
		TrendAnalysis:      domain.TrendAnalysis{Message: insufficientDataMessage},
		TopMerchants:       []domain.MerchantSpend{},
		BudgetPerformance:  map[string]domain.BudgetPerformance{},
	}
}

func (s *Summarizer) budgetPerformance(byCategory map[string]float64) map[string]domain.BudgetPerformance {
	performance := make(map[string]domain.BudgetPerformance)
	for category, spent := range byCategory {
		budget, ok := s.budgets[category]
		if !ok || budget <= 0 {
			continue
		}

		utilization := spent / budget * 100
		status := "on_track"
		switch {
		case utilization > 100:
			status = "over_budget"
		case utilization > 80:
			status = "near_limit"
		}

		performance[category] = domain.BudgetPerformance{
			Budgeted:           budget,
			Spent:              spent,
			Remaining:          insights.Round(math.Max(0, budget-spent), 2),
			UtilizationPercent: insights.Round(utilization, 1),
			Status:             status,
		}
	}
	return performance
}

// startOfWeek returns the Monday on or before d.
func startOfWeek(d civil.Date) civil.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// between returns records dated within [from, to].
func between(records []dayRecord, from, to civil.Date) []dayRecord {
	var out []dayRecord
	for _, r := range records {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out
}

func categorySpending(records []dayRecord) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range records {
		if r.Amount < 0 {
			totals[r.Category] += r.AbsAmount
		}
	}
	for category, total := range totals {
		totals[category] = insights.Round(total, 2)
	}
	return totals
}

func spendTotal(records []dayRecord) float64 {
	total := 0.0
	for _, r := range records {
		if r.Amount < 0 {
			total += r.AbsAmount
		}
	}
	return total
}

// spendChange is the percentage change in spend between the week starting at
// weekStart and the week starting at baseStart. A zero base yields 0.
func spendChange(records []dayRecord, weekStart, baseStart civil.Date) float64 {
	base := spendTotal(between(records, baseStart, baseStart.AddDays(6)))
	if base <= 0 {
		return 0
	}
	current := spendTotal(between(records, weekStart, weekStart.AddDays(6)))
	return (current - base) / base * 100
}

func topMerchants(records []dayRecord) []domain.MerchantSpend {
	type tally struct {
		total float64
		count int
	}
	tallies := make(map[string]*tally)
	for _, r := range records {
		if r.Amount >= 0 {
			continue
		}
		t, ok := tallies[r.Merchant]
		if !ok {
			t = &tally{}
			tallies[r.Merchant] = t
		}
		t.total += r.AbsAmount
		t.count++
	}

	names := make([]string, 0, len(tallies))
	for name := range tallies {
		names = append(names, name)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		return tallies[names[i]].total > tallies[names[j]].total
	})
	if len(names) > topMerchantLimit {
		names = names[:topMerchantLimit]
	}

	merchants := make([]domain.MerchantSpend, 0, len(names))
	for _, name := range names {
		t := tallies[name]
		merchants = append(merchants, domain.MerchantSpend{
			Name:               name,
			TotalSpent:         insights.Round(t.total, 2),
			TransactionCount:   t.count,
			AverageTransaction: insights.Round(t.total/float64(t.count), 2),
		})
	}
	return merchants
}
