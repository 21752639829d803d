package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/rs/zerolog"
)

const (
	methodology         = "Linear regression on daily spend with day-of-week seasonality and trend analysis"
	fallbackMethodology = "Fallback: Simple average calculation"

	minForecastDays    = 7
	minSeasonalityDays = 14
	shortTermWindow    = 14
	savingsWindow      = 7
	trendSlope         = 5.0
	fallbackConfidence = 0.4
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"
)

// Forecaster projects spending from daily history.
type Forecaster struct {
	log zerolog.Logger
}

// NewForecaster returns a Forecaster.
func NewForecaster(log zerolog.Logger) *Forecaster {
	return &Forecaster{log: log}
}

// day aggregates one calendar day.
type day struct {
	date       civil.Date
	spend      float64
	income     float64
	dayOfWeek  int
	dayOfMonth int
}

// Forecast projects the next 7 and 30 days of spending. Fewer than seven
// days of history fall back to simple averages.
func (f *Forecaster) Forecast(ctx context.Context, txns []domain.Transaction) (*domain.Forecast, error) {
	records, err := insights.Normalize(txns)
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w", err)
	}

	days := dailyTotals(records)
	if len(days) < minForecastDays {
		return fallback(records), nil
	}

	next30 := forecast30(days)
	forecast := &domain.Forecast{
		Next30DaySpend:    insights.Round(next30, 2),
		Next7DaySpend:     insights.Round(forecast7(days), 2),
		SavingsForecast:   insights.Round(savings(days), 2),
		ConfidenceScore:   confidence(days),
		Methodology:       methodology,
		TrendDirection:    trendDirection(days),
		SeasonalFactors:   seasonality(days),
		CategoryForecasts: categoryForecasts(records, next30),
		RiskFactors:       riskFactors(days),
	}

	f.log.Debug().
		Int("days", len(days)).
		Float64("next_30_day_spend", forecast.Next30DaySpend).
		Str("trend", forecast.TrendDirection).
		Msg("Spending forecast built")

	return forecast, nil
}

func fallback(records []domain.NormalizedRecord) *domain.Forecast {
	spend := 0.0
	for _, r := range records {
		if r.Amount < 0 {
			spend += r.AbsAmount
		}
	}
	avgDaily := 0.0
	if len(records) > 0 {
		avgDaily = spend / float64(len(records))
	}

	return &domain.Forecast{
		Next30DaySpend:    insights.Round(avgDaily*30, 2),
		Next7DaySpend:     insights.Round(avgDaily*7, 2),
		ConfidenceScore:   fallbackConfidence,
		Methodology:       fallbackMethodology,
		TrendDirection:    TrendUnknown,
		SeasonalFactors:   map[string]float64{"insufficient_data": 1},
		CategoryForecasts: []domain.CategoryForecast{},
		RiskFactors:       []string{"insufficient_data_for_detailed_analysis"},
	}
}

// dailyTotals groups records by calendar date in ascending order. Only days
// with at least one transaction appear.
func dailyTotals(records []domain.NormalizedRecord) []day {
	var days []day
	for _, r := range records {
		date := civil.DateOf(r.Timestamp)
		if len(days) == 0 || days[len(days)-1].date != date {
			days = append(days, day{
				date:       date,
				dayOfWeek:  weekdayIndex(date.Weekday()),
				dayOfMonth: date.Day,
			})
		}
		d := &days[len(days)-1]
		switch {
		case r.Amount < 0:
			d.spend += r.AbsAmount
		case r.Amount > 0:
			d.income += r.Amount
		}
	}
	return days
}

func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func spends(days []day) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = d.spend
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// forecast30 regresses daily spend on days since start, weekday and day of
// month and sums the next thirty non-negative predictions.
func forecast30(days []day) float64 {
	first := days[0].date
	x := make([][]float64, len(days))
	for i, d := range days {
		x[i] = []float64{float64(d.date.DaysSince(first)), float64(d.dayOfWeek), float64(d.dayOfMonth)}
	}
	model := fitLinear(x, spends(days))

	last := days[len(days)-1].date
	offset := float64(last.DaysSince(first))
	total := 0.0
	for i := 1; i <= 30; i++ {
		future := last.AddDays(i)
		pred := model.predict([]float64{offset + float64(i), float64(weekdayIndex(future.Weekday())), float64(future.Day)})
		total += math.Max(0, pred)
	}
	return total
}

// forecast7 scales the recent daily average by weekday means over the last
// two weeks of activity.
func forecast7(days []day) float64 {
	recent := days
	if len(recent) > shortTermWindow {
		recent = recent[len(recent)-shortTermWindow:]
	}
	dailyAvg := mean(spends(recent))

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, d := range recent {
		sums[d.dayOfWeek] += d.spend
		counts[d.dayOfWeek]++
	}

	last := days[len(days)-1].date
	total := 0.0
	for i := 1; i <= 7; i++ {
		dow := weekdayIndex(last.AddDays(i).Weekday())
		factor := 1.0
		if counts[dow] > 0 && dailyAvg > 0 {
			factor = sums[dow] / float64(counts[dow]) / dailyAvg
		}
		total += dailyAvg * factor
	}
	return math.Max(0, total)
}

func savings(days []day) float64 {
	if len(days) < minSeasonalityDays {
		return 0
	}
	recent := days[len(days)-savingsWindow:]

	recentSpend := mean(spends(recent))
	historical := mean(spends(days))
	recentIncome := 0.0
	for _, d := range recent {
		recentIncome += d.income
	}
	recentIncome /= float64(len(recent))

	optimized := math.Min(recentSpend, historical*0.95)
	return math.Max(0, (recentIncome-optimized)*30)
}

func trendDirection(days []day) string {
	slope, _ := insights.LinearFit(spends(days))
	switch {
	case slope > trendSlope:
		return TrendIncreasing
	case slope < -trendSlope:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// seasonality is each weekday's mean spend relative to the overall mean.
func seasonality(days []day) map[string]float64 {
	if len(days) < minSeasonalityDays {
		return map[string]float64{"insufficient_data": 1}
	}

	overall := mean(spends(days))
	sums := make([]float64, 7)
	counts := make([]int, 7)
	for _, d := range days {
		sums[d.dayOfWeek] += d.spend
		counts[d.dayOfWeek]++
	}

	factors := make(map[string]float64, len(weekdayNames))
	for i, name := range weekdayNames {
		factors[name] = 1
		if counts[i] > 0 && overall > 0 {
			factors[name] = insights.Round(sums[i]/float64(counts[i])/overall, 2)
		}
	}
	return factors
}

func riskFactors(days []day) []string {
	var risks []string
	values := spends(days)
	avgSpend := mean(values)

	if insights.SampleStdDev(values) > avgSpend*0.5 {
		risks = append(risks, "high_spending_volatility")
	}
	if trendDirection(days) == TrendIncreasing {
		risks = append(risks, "increasing_spending_trend")
	}

	income := 0.0
	for _, d := range days {
		income += d.income
	}
	avgIncome := income / float64(len(days))
	if avgIncome > 0 && avgSpend/avgIncome > 0.8 {
		risks = append(risks, "low_savings_rate")
	}

	var weekend, weekday []float64
	for _, d := range days {
		if d.dayOfWeek >= 5 {
			weekend = append(weekend, d.spend)
		} else {
			weekday = append(weekday, d.spend)
		}
	}
	if len(weekend) > 0 && len(weekday) > 0 && mean(weekend) > mean(weekday)*1.5 {
		risks = append(risks, "weekend_overspending")
	}

	if len(risks) == 0 {
		return []string{"no_significant_risks_detected"}
	}
	return risks
}

func confidence(days []day) float64 {
	values := spends(days)
	avg := mean(values)
	consistency := 0.0
	if avg > 0 {
		consistency = 1 - insights.SampleStdDev(values)/avg
	}

	c := 0.5
	c += math.Min(0.3, float64(len(days))/100)
	c += math.Min(0.2, consistency*0.2)
	return insights.Round(math.Min(0.95, math.Max(0.3, c)), 3)
}

// categoryForecasts splits the 30-day forecast by each category's share of
// historical spend. Confidence grows with the number of transactions behind
// the share.
func categoryForecasts(records []domain.NormalizedRecord, next30 float64) []domain.CategoryForecast {
	totals := make(map[string]float64)
	counts := make(map[string]int)
	grand := 0.0
	for _, r := range records {
		if r.Amount >= 0 {
			continue
		}
		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = "Uncategorized"
		}
		totals[category] += r.AbsAmount
		counts[category]++
		grand += r.AbsAmount
	}

	forecasts := make([]domain.CategoryForecast, 0, len(totals))
	if grand == 0 {
		return forecasts
	}
	for category, total := range totals {
		forecasts = append(forecasts, domain.CategoryForecast{
			Category:   category,
			Forecast:   insights.Round(next30*total/grand, 2),
			Confidence: insights.Round(0.5+math.Min(0.35, float64(counts[category])/40), 2),
		})
	}
	sort.Slice(forecasts, func(i, j int) bool {
		if forecasts[i].Forecast != forecasts[j].Forecast {
			return forecasts[i].Forecast > forecasts[j].Forecast
		}
		return forecasts[i].Category < forecasts[j].Category
	})
	return forecasts
}
