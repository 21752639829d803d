package forecast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func txn(id string, at time.Time, amount float64, category string) domain.Transaction {
	return domain.Transaction{
		ID:           id,
		PostedAt:     at.Format(time.RFC3339),
		Amount:       decimal.NewFromFloat(amount),
		MerchantName: "Merchant",
		Category:     category,
	}
}

// linearHistory spends 10 + 0.5*i on day i, alternating Food and Transport.
func linearHistory(n int) []domain.Transaction {
	var txns []domain.Transaction
	for i := 0; i < n; i++ {
		category := "Food"
		if i%2 == 1 {
			category = "Transport"
		}
		txns = append(txns, txn(fmt.Sprintf("t%02d", i), start.AddDate(0, 0, i), -(10 + 0.5*float64(i)), category))
	}
	return txns
}

func TestForecastLinearHistory(t *testing.T) {
	got, err := NewForecaster(zerolog.Nop()).Forecast(context.Background(), linearHistory(40))
	require.NoError(t, err)

	assert.InDelta(t, 1117.5, got.Next30DaySpend, 0.01)
	assert.InDelta(t, 183.75, got.Next7DaySpend, 0.01)
	assert.Zero(t, got.SavingsForecast)
	assert.Equal(t, 0.941, got.ConfidenceScore)
	assert.Equal(t, TrendStable, got.TrendDirection)
	assert.Equal(t, methodology, got.Methodology)
	assert.Equal(t, []string{"no_significant_risks_detected"}, got.RiskFactors)
	assert.Equal(t, map[string]float64{
		"monday":    0.95,
		"tuesday":   0.97,
		"wednesday": 1.0,
		"thursday":  1.03,
		"friday":    1.05,
		"saturday":  0.99,
		"sunday":    1.01,
	}, got.SeasonalFactors)

	require.Len(t, got.CategoryForecasts, 2)
	assert.Equal(t, "Transport", got.CategoryForecasts[0].Category)
	assert.InDelta(t, 565.82, got.CategoryForecasts[0].Forecast, 0.01)
	assert.Equal(t, "Food", got.CategoryForecasts[1].Category)
	assert.InDelta(t, 551.68, got.CategoryForecasts[1].Forecast, 0.01)
	assert.Equal(t, 0.85, got.CategoryForecasts[1].Confidence)
}

func TestForecastFallback(t *testing.T) {
	txns := []domain.Transaction{
		txn("a", start, -30, "Food"),
		txn("b", start.AddDate(0, 0, 1), -60, "Food"),
		txn("c", start.AddDate(0, 0, 2), 100, "Income"),
	}

	got, err := NewForecaster(zerolog.Nop()).Forecast(context.Background(), txns)
	require.NoError(t, err)

	assert.Equal(t, 900.0, got.Next30DaySpend)
	assert.Equal(t, 210.0, got.Next7DaySpend)
	assert.Equal(t, 0.4, got.ConfidenceScore)
	assert.Equal(t, TrendUnknown, got.TrendDirection)
	assert.Equal(t, fallbackMethodology, got.Methodology)
	assert.Equal(t, []string{"insufficient_data_for_detailed_analysis"}, got.RiskFactors)
	assert.NotNil(t, got.CategoryForecasts)
}

func TestForecastEmpty(t *testing.T) {
	got, err := NewForecaster(zerolog.Nop()).Forecast(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, got.Next30DaySpend)
	assert.Equal(t, fallbackMethodology, got.Methodology)
}

func TestForecastDataError(t *testing.T) {
	txns := linearHistory(10)
	txns[3].PostedAt = "tomorrow"

	_, err := NewForecaster(zerolog.Nop()).Forecast(context.Background(), txns)
	require.Error(t, err)
	assert.True(t, domain.IsDataError(err))
}

func TestDailyTotals(t *testing.T) {
	txns := []domain.Transaction{
		txn("a", start, -10, "Food"),
		txn("b", start.Add(2*time.Hour), -5, "Food"),
		txn("c", start.Add(3*time.Hour), 50, "Income"),
		txn("d", start.AddDate(0, 0, 3), -7, "Food"),
	}
	records, err := insights.Normalize(txns)
	require.NoError(t, err)

	days := dailyTotals(records)
	require.Len(t, days, 2)
	assert.Equal(t, day{date: civil.Date{Year: 2024, Month: time.January, Day: 1}, spend: 15, income: 50, dayOfWeek: 0, dayOfMonth: 1}, days[0])
	assert.Equal(t, 3, days[1].dayOfWeek)
	assert.Equal(t, 7.0, days[1].spend)
}

func TestRiskFactors(t *testing.T) {
	var days []day
	for i := 0; i < 14; i++ {
		date := civil.DateOf(start).AddDays(i)
		spend := 20.0 + 10*float64(i)
		dow := weekdayIndex(date.Weekday())
		if dow >= 5 {
			spend *= 4
		}
		days = append(days, day{date: date, spend: spend, income: 30, dayOfWeek: dow, dayOfMonth: date.Day})
	}

	risks := riskFactors(days)
	assert.Equal(t, []string{
		"high_spending_volatility",
		"increasing_spending_trend",
		"low_savings_rate",
		"weekend_overspending",
	}, risks)
}

func TestSavings(t *testing.T) {
	var days []day
	for i := 0; i < 14; i++ {
		days = append(days, day{spend: 40, income: 100})
	}
	// (100 - min(40, 40*0.95)) * 30
	assert.InDelta(t, 1860, savings(days), 1e-9)
	assert.Zero(t, savings(days[:13]))
}

func TestFitLinearCollinearFeatures(t *testing.T) {
	// Inside one month day of month is days since start plus one.
	var x [][]float64
	var y []float64
	for i := 0; i < 10; i++ {
		date := civil.Date{Year: 2024, Month: time.March, Day: 1}.AddDays(i)
		x = append(x, []float64{float64(i), float64(weekdayIndex(date.Weekday())), float64(date.Day)})
		y = append(y, 2*float64(i))
	}

	model := fitLinear(x, y)
	for i := range x {
		assert.InDelta(t, y[i], model.predict(x[i]), 1e-4)
	}
}

func TestFitLinearExact(t *testing.T) {
	x := [][]float64{{0, 1}, {1, 0}, {2, 3}, {3, 1}, {4, 4}}
	var y []float64
	for _, row := range x {
		y = append(y, 3+2*row[0]-row[1])
	}

	model := fitLinear(x, y)
	require.Len(t, model.coef, 2)
	assert.InDelta(t, 2, model.coef[0], 1e-6)
	assert.InDelta(t, -1, model.coef[1], 1e-6)
	assert.InDelta(t, 3, model.intercept, 1e-6)
}
