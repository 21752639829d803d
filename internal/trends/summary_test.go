package trends

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(id, date string, amount float64, merchant, category string) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		PostedAt:     date + "T12:00:00Z",
		Amount:       decimal.NewFromFloat(amount),
		MerchantName: merchant,
		Category:     category,
	}
}

func newTestSummarizer() *Summarizer {
	s := NewSummarizer(nil, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, time.March, 7, 15, 0, 0, 0, time.UTC) }
	return s
}

func TestWeeklySummary(t *testing.T) {
	txns := []domain.Transaction{
		txn("old", "2024-02-07", -40, "Grocer", "Food & Dining"),
		txn("prev", "2024-02-27", -100, "Grocer", "Food & Dining"),
		txn("mon", "2024-03-04", -50, "Grocer", "Food & Dining"),
		txn("tue", "2024-03-05", -70, "Cafe", "Food & Dining"),
		txn("wed", "2024-03-06", -250, "Mall", "Shopping"),
		txn("pay", "2024-03-08", 1000, "Employer", "Income"),
		txn("fri", "2024-03-08", -20, "Metro", "Transportation"),
	}

	summary, err := newTestSummarizer().WeeklySummary(context.Background(), txns)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-04", summary.WeekStart)
	assert.Equal(t, "2024-03-10", summary.WeekEnd)
	assert.Equal(t, 390.0, summary.TotalSpend)
	assert.Equal(t, 1000.0, summary.TotalIncome)
	assert.Equal(t, 610.0, summary.NetChange)
	assert.Equal(t, 290.0, summary.WeekOverWeekChange)
	assert.Equal(t, 875.0, summary.MonthOverMonthChange)
	assert.Equal(t, 0.71, summary.SpendingVelocity)
	assert.Equal(t, map[string]float64{
		"Food & Dining":  120,
		"Shopping":       250,
		"Transportation": 20,
	}, summary.SpendingByCategory)

	require.Len(t, summary.TopMerchants, 4)
	assert.Equal(t, domain.MerchantSpend{Name: "Mall", TotalSpent: 250, TransactionCount: 1, AverageTransaction: 250}, summary.TopMerchants[0])
	assert.Equal(t, "Cafe", summary.TopMerchants[1].Name)
	assert.Equal(t, "Grocer", summary.TopMerchants[2].Name)
	assert.Equal(t, "Metro", summary.TopMerchants[3].Name)

	assert.Equal(t, map[string]domain.BudgetPerformance{
		"Food & Dining":  {Budgeted: 150, Spent: 120, Remaining: 30, UtilizationPercent: 80, Status: "on_track"},
		"Shopping":       {Budgeted: 200, Spent: 250, Remaining: 0, UtilizationPercent: 125, Status: "over_budget"},
		"Transportation": {Budgeted: 100, Spent: 20, Remaining: 80, UtilizationPercent: 20, Status: "on_track"},
	}, summary.BudgetPerformance)

	trend := summary.TrendAnalysis
	assert.Empty(t, trend.OverallDirection, "seven recent records are not enough for an overall trend")
	assert.Nil(t, trend.WeeklyAverage)
	assert.Equal(t, map[string]string{"Food & Dining": "increasing"}, trend.CategoryTrends)
	assert.Equal(t, "Wednesday", trend.BusiestDay)
	assert.Equal(t, "Friday", trend.QuietestDay)
}

// weeklyBatch returns two equal outflows in each consecutive week starting
// Monday 2024-02-05, one total per week.
func weeklyBatch(weekTotals ...float64) []domain.Transaction {
	start := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)
	var txns []domain.Transaction
	for i, total := range weekTotals {
		day := start.AddDate(0, 0, 7*i)
		txns = append(txns,
			txn(fmt.Sprintf("w%da", i), day.Format("2006-01-02"), -total/2, "Shop", "Shopping"),
			txn(fmt.Sprintf("w%db", i), day.AddDate(0, 0, 2).Format("2006-01-02"), -total/2, "Shop", "Shopping"),
		)
	}
	return txns
}

func TestWeeklySummaryOverallTrend(t *testing.T) {
	tests := []struct {
		name         string
		weekTotals   []float64
		wantDir      string
		wantStrength string
		wantAverage  float64
		wantVol      float64
	}{
		{name: "strong increase", weekTotals: []float64{100, 200, 300, 400, 500}, wantDir: "increasing", wantStrength: "strong", wantAverage: 300, wantVol: 158.11},
		{name: "moderate decrease", weekTotals: []float64{200, 180, 160, 140, 120}, wantDir: "decreasing", wantStrength: "moderate", wantAverage: 160, wantVol: 31.62},
		{name: "stable", weekTotals: []float64{100, 100, 100, 100, 100}, wantDir: "stable", wantStrength: "stable", wantAverage: 100, wantVol: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := newTestSummarizer().WeeklySummary(context.Background(), weeklyBatch(tt.weekTotals...))
			require.NoError(t, err)

			trend := summary.TrendAnalysis
			assert.Equal(t, tt.wantDir, trend.OverallDirection)
			assert.Equal(t, tt.wantStrength, trend.TrendStrength)
			require.NotNil(t, trend.WeeklyAverage)
			require.NotNil(t, trend.Volatility)
			assert.Equal(t, tt.wantAverage, *trend.WeeklyAverage)
			assert.Equal(t, tt.wantVol, *trend.Volatility)
		})
	}
}

func TestWeeklySummaryEmpty(t *testing.T) {
	summary, err := newTestSummarizer().WeeklySummary(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-04", summary.WeekStart)
	assert.Equal(t, "2024-03-10", summary.WeekEnd)
	assert.Equal(t, "Insufficient data for trend analysis", summary.TrendAnalysis.Message)
	assert.NotNil(t, summary.TopMerchants)
	assert.Empty(t, summary.SpendingByCategory)
	assert.Zero(t, summary.TotalSpend)
}

func TestWeeklySummaryNoSpending(t *testing.T) {
	txns := []domain.Transaction{txn("pay", "2024-03-08", 500, "Employer", "Income")}

	summary, err := newTestSummarizer().WeeklySummary(context.Background(), txns)
	require.NoError(t, err)

	assert.Equal(t, 500.0, summary.TotalIncome)
	assert.Equal(t, "Unknown", summary.TrendAnalysis.BusiestDay)
	assert.Equal(t, "Unknown", summary.TrendAnalysis.QuietestDay)
	assert.Zero(t, summary.WeekOverWeekChange)
	assert.Empty(t, summary.TopMerchants)
}

func TestWeeklySummaryTopMerchantsLimit(t *testing.T) {
	var txns []domain.Transaction
	for i := 0; i < 7; i++ {
		txns = append(txns, txn(fmt.Sprintf("m%d", i), "2024-03-05", -float64(10*(i+1)), fmt.Sprintf("Merchant %d", i), "Shopping"))
	}

	summary, err := newTestSummarizer().WeeklySummary(context.Background(), txns)
	require.NoError(t, err)

	require.Len(t, summary.TopMerchants, 5)
	assert.Equal(t, "Merchant 6", summary.TopMerchants[0].Name)
	assert.Equal(t, "Merchant 2", summary.TopMerchants[4].Name)
}

func TestWeeklySummaryCustomBudgets(t *testing.T) {
	s := NewSummarizer(map[string]float64{"Shopping": 100}, zerolog.Nop())
	txns := []domain.Transaction{txn("a", "2024-03-05", -85, "Mall", "Shopping")}

	summary, err := s.WeeklySummary(context.Background(), txns)
	require.NoError(t, err)

	assert.Equal(t, "near_limit", summary.BudgetPerformance["Shopping"].Status)
	assert.Equal(t, 15.0, summary.BudgetPerformance["Shopping"].Remaining)
}

func TestWeeklySummaryDataError(t *testing.T) {
	txns := []domain.Transaction{
		txn("ok", "2024-03-05", -10, "A", "B"),
		{ID: "bad", PostedAt: "next tuesday", Amount: decimal.NewFromInt(-1)},
	}

	_, err := newTestSummarizer().WeeklySummary(context.Background(), txns)
	require.Error(t, err)
	assert.True(t, domain.IsDataError(err))
}

func TestStartOfWeek(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"2024-03-04", "2024-03-04"},
		{"2024-03-10", "2024-03-04"},
		{"2024-01-01", "2024-01-01"},
		{"2023-12-31", "2023-12-25"},
	} {
		d, err := civil.ParseDate(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, startOfWeek(d).String(), tt.in)
	}
}
