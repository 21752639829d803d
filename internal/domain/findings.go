package domain

// AnomalyKind classifies an anomaly finding.
type AnomalyKind string

const (
	AnomalyUnusualAmount    AnomalyKind = "unusual_amount"
	AnomalyUnusualMerchant  AnomalyKind = "unusual_merchant"
	AnomalyUnusualTiming    AnomalyKind = "unusual_timing"
	AnomalyUnusualFrequency AnomalyKind = "unusual_frequency"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so callers can filter by a minimum level.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AnomalyFinding is a single detector result for one transaction.
// Score holds the raw statistic: a z-score, an outlier decision value, or 0.
type AnomalyFinding struct {
	TransactionID  string      `json:"transaction_id"`
	Kind           AnomalyKind `json:"anomaly_type"`
	Severity       Severity    `json:"severity"`
	Confidence     float64     `json:"confidence"`
	Description    string      `json:"description"`
	ExpectedValue  *float64    `json:"expected_value"`
	ActualValue    float64     `json:"actual_value"`
	Score          float64     `json:"z_score"`
	Recommendation string      `json:"recommendation"`
}

// Frequency labels for recurring payments. Irregular cadences use
// "every_<N>_days".
const (
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
	FrequencyUnknown   = "unknown"
)

// RisingPaymentFinding describes a recurring merchant charge that is trending up.
type RisingPaymentFinding struct {
	MerchantName       string  `json:"merchant_name"`
	Category           string  `json:"category"`
	CurrentAmount      float64 `json:"current_amount"`
	PreviousAmount     float64 `json:"previous_amount"`
	IncreasePercentage float64 `json:"increase_percentage"`
	IncreaseAmount     float64 `json:"increase_amount"`
	Frequency          string  `json:"frequency"`
	Confidence         float64 `json:"confidence"`
	FirstDetected      string  `json:"first_detected"`
	LastPayment        string  `json:"last_payment"`
	Recommendation     string  `json:"recommendation"`
}

// SubscriptionChange is a plan upgrade or downgrade between two consecutive
// charges of a subscription merchant.
type SubscriptionChange struct {
	Merchant      string  `json:"merchant"`
	Date          string  `json:"date"`
	OldAmount     float64 `json:"old_amount"`
	NewAmount     float64 `json:"new_amount"`
	ChangeType    string  `json:"change_type"`
	ChangePercent float64 `json:"change_percent"`
}
