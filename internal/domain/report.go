package domain

import "time"

// WeeklySummary aggregates one Monday-to-Sunday week of activity.
type WeeklySummary struct {
	WeekStart            string                       `json:"week_start"`
	WeekEnd              string                       `json:"week_end"`
	TotalSpend           float64                      `json:"total_spend"`
	TotalIncome          float64                      `json:"total_income"`
	NetChange            float64                      `json:"net_change"`
	SpendingByCategory   map[string]float64           `json:"spending_by_category"`
	TrendAnalysis        TrendAnalysis                `json:"trend_analysis"`
	WeekOverWeekChange   float64                      `json:"week_over_week_change"`
	MonthOverMonthChange float64                      `json:"month_over_month_change"`
	TopMerchants         []MerchantSpend              `json:"top_merchants"`
	SpendingVelocity     float64                      `json:"spending_velocity"`
	BudgetPerformance    map[string]BudgetPerformance `json:"budget_performance"`
}

// TrendAnalysis holds the direction of recent weekly spending.
type TrendAnalysis struct {
	Message          string            `json:"message,omitempty"`
	OverallDirection string            `json:"overall_direction,omitempty"`
	TrendStrength    string            `json:"trend_strength,omitempty"`
	WeeklyAverage    *float64          `json:"weekly_average,omitempty"`
	Volatility       *float64          `json:"volatility,omitempty"`
	CategoryTrends   map[string]string `json:"category_trends,omitempty"`
	BusiestDay       string            `json:"busiest_day,omitempty"`
	QuietestDay      string            `json:"quietest_day,omitempty"`
}

// MerchantSpend is a merchant's share of a period's spending.
type MerchantSpend struct {
	Name               string  `json:"name"`
	TotalSpent         float64 `json:"total_spent"`
	TransactionCount   int     `json:"transaction_count"`
	AverageTransaction float64 `json:"average_transaction"`
}

// BudgetPerformance compares a category's weekly spend to its budget.
type BudgetPerformance struct {
	Budgeted           float64 `json:"budgeted"`
	Spent              float64 `json:"spent"`
	Remaining          float64 `json:"remaining"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Status             string  `json:"status"`
}

// MerchantTagSuggestion proposes a better category for a merchant.
type MerchantTagSuggestion struct {
	MerchantName          string             `json:"merchant_name"`
	OriginalCategory      string             `json:"original_category"`
	SuggestedCategory     string             `json:"suggested_category"`
	Confidence            float64            `json:"confidence"`
	Reasoning             string             `json:"reasoning"`
	SimilarMerchants      []string           `json:"similar_merchants"`
	CategoryProbabilities map[string]float64 `json:"category_probabilities"`
}

// CategoryForecast is the projected 30-day spend for one category.
type CategoryForecast struct {
	Category   string  `json:"category"`
	Forecast   float64 `json:"forecast"`
	Confidence float64 `json:"confidence"`
}

// Forecast projects future spending from daily history.
type Forecast struct {
	Next30DaySpend    float64            `json:"next_30_day_spend"`
	Next7DaySpend     float64            `json:"next_7_day_spend"`
	SavingsForecast   float64            `json:"savings_forecast"`
	ConfidenceScore   float64            `json:"confidence_score"`
	Methodology       string             `json:"methodology"`
	TrendDirection    string             `json:"trend_direction"`
	SeasonalFactors   map[string]float64 `json:"seasonal_factors"`
	CategoryForecasts []CategoryForecast `json:"category_forecasts"`
	RiskFactors       []string           `json:"risk_factors"`
}

// InsightReport bundles every analysis run for one user at one point in time.
type InsightReport struct {
	ReportID            string                  `json:"report_id"`
	UserID              string                  `json:"user_id"`
	GeneratedAt         time.Time               `json:"generated_at"`
	TransactionCount    int                     `json:"transaction_count"`
	Anomalies           []AnomalyFinding        `json:"anomalies"`
	RisingPayments      []RisingPaymentFinding  `json:"rising_payments"`
	SubscriptionChanges []SubscriptionChange    `json:"subscription_changes"`
	WeeklySummary       *WeeklySummary          `json:"weekly_summary,omitempty"`
	MerchantTags        []MerchantTagSuggestion `json:"merchant_tags"`
	Forecast            *Forecast               `json:"forecast,omitempty"`
}
