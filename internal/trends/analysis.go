package trends

import (
	"math"
	"sort"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/insights"
)

const (
	directionIncreasing = "increasing"
	directionDecreasing = "decreasing"
	directionStable     = "stable"
)

// analyzeTrends looks back four weeks from the first day with activity in the
// current week.
func analyzeTrends(records, current []dayRecord) domain.TrendAnalysis {
	from := current[0].Date.AddDays(-7 * lookbackWeeks)
	var recent []dayRecord
	for _, r := range records {
		if !r.Date.Before(from) {
			recent = append(recent, r)
		}
	}

	var trends domain.TrendAnalysis
	if len(recent) >= minTrendRecords {
		weekly := weeklySpend(recent)
		if len(weekly) >= 2 {
			slope, _ := insights.LinearFit(weekly)
			trends.OverallDirection = direction(slope, overallSlopeThreshold)
			trends.TrendStrength = strength(slope)

			avg := insights.Round(meanOf(weekly), 2)
			volatility := insights.Round(insights.SampleStdDev(weekly), 2)
			trends.WeeklyAverage = &avg
			trends.Volatility = &volatility
		}
	}

	trends.CategoryTrends = categoryTrends(recent, current)
	trends.BusiestDay, trends.QuietestDay = busiestAndQuietest(current)
	return trends
}

func direction(slope, threshold float64) string {
	switch {
	case slope > threshold:
		return directionIncreasing
	case slope < -threshold:
		return directionDecreasing
	default:
		return directionStable
	}
}

func strength(slope float64) string {
	switch {
	case math.Abs(slope) <= overallSlopeThreshold:
		return directionStable
	case math.Abs(slope) > strongSlopeThreshold:
		return "strong"
	default:
		return "moderate"
	}
}

type isoWeek struct {
	year, week int
}

// weeklySpend totals spending per ISO week in chronological order. Weeks
// without spending are absent.
func weeklySpend(records []dayRecord) []float64 {
	totals := make(map[isoWeek]float64)
	for _, r := range records {
		if r.Amount >= 0 {
			continue
		}
		year, week := r.Date.In(time.UTC).ISOWeek()
		totals[isoWeek{year, week}] += r.AbsAmount
	}

	weeks := make([]isoWeek, 0, len(totals))
	for w := range totals {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].year != weeks[j].year {
			return weeks[i].year < weeks[j].year
		}
		return weeks[i].week < weeks[j].week
	})

	values := make([]float64, len(weeks))
	for i, w := range weeks {
		values[i] = totals[w]
	}
	return values
}

func categoryTrends(recent, current []dayRecord) map[string]string {
	trends := make(map[string]string)
	seen := make(map[string]bool)
	for _, r := range current {
		if seen[r.Category] {
			continue
		}
		seen[r.Category] = true

		var inCategory []dayRecord
		for _, rr := range recent {
			if rr.Category == r.Category {
				inCategory = append(inCategory, rr)
			}
		}
		if len(inCategory) < minCategoryRecords {
			continue
		}

		weekly := weeklySpend(inCategory)
		if len(weekly) < 2 {
			continue
		}
		slope, _ := insights.LinearFit(weekly)
		trends[r.Category] = direction(slope, categorySlopeThreshold)
	}
	return trends
}

// busiestAndQuietest names the weekdays with the most and least spending.
// Ties go to the alphabetically first day name.
func busiestAndQuietest(current []dayRecord) (string, string) {
	byDay := make(map[string]float64)
	for _, r := range current {
		if r.Amount < 0 {
			byDay[r.Timestamp.Weekday().String()] += r.AbsAmount
		}
	}
	if len(byDay) == 0 {
		return "Unknown", "Unknown"
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	busiest, quietest := days[0], days[0]
	for _, day := range days[1:] {
		if byDay[day] > byDay[busiest] {
			busiest = day
		}
		if byDay[day] < byDay[quietest] {
			quietest = day
		}
	}
	return busiest, quietest
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
