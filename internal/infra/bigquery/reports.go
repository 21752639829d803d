package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/spend-insights/internal/domain"
)

// InsightReportRow is one analysis run. The full report is kept in Payload;
// the scalar columns exist for dashboards and partition pruning.
type InsightReportRow struct {
	ReportID    string    `bigquery:"report_id"`    // REQUIRED
	UserID      string    `bigquery:"user_id"`      // REQUIRED
	GeneratedAt time.Time `bigquery:"generated_at"` // REQUIRED, partition column

	TransactionCount   int64 `bigquery:"transaction_count"`
	AnomalyCount       int64 `bigquery:"anomaly_count"`
	RisingPaymentCount int64 `bigquery:"rising_payment_count"`

	Next30DaySpend bigquery.NullFloat64 `bigquery:"next_30_day_spend"` // NULLABLE

	Payload bigquery.NullJSON `bigquery:"payload"` // REQUIRED JSON
}

// AnomalyFindingRow flattens one anomaly of a report.
type AnomalyFindingRow struct {
	ReportID      string    `bigquery:"report_id"`
	UserID        string    `bigquery:"user_id"`
	TransactionID string    `bigquery:"transaction_id"`
	DetectedAt    time.Time `bigquery:"detected_at"`

	AnomalyType string  `bigquery:"anomaly_type"`
	Severity    string  `bigquery:"severity"`
	Confidence  float64 `bigquery:"confidence"`
	ZScore      float64 `bigquery:"z_score"`

	ExpectedValue bigquery.NullFloat64 `bigquery:"expected_value"` // NULLABLE
	ActualValue   float64              `bigquery:"actual_value"`

	Description    string              `bigquery:"description"`
	Recommendation bigquery.NullString `bigquery:"recommendation"`
}

// RisingPaymentRow flattens one rising recurring payment of a report.
type RisingPaymentRow struct {
	ReportID   string    `bigquery:"report_id"`
	UserID     string    `bigquery:"user_id"`
	DetectedAt time.Time `bigquery:"detected_at"`

	MerchantName string              `bigquery:"merchant_name"`
	Category     bigquery.NullString `bigquery:"category"`
	Frequency    string              `bigquery:"frequency"`

	CurrentAmount      float64 `bigquery:"current_amount"`
	PreviousAmount     float64 `bigquery:"previous_amount"`
	IncreaseAmount     float64 `bigquery:"increase_amount"`
	IncreasePercentage float64 `bigquery:"increase_percentage"`
	Confidence         float64 `bigquery:"confidence"`

	LastPayment bigquery.NullString `bigquery:"last_payment"`
}

// reportRows splits a report into the rows of the three report tables.
func reportRows(report *domain.InsightReport) (*InsightReportRow, []*AnomalyFindingRow, []*RisingPaymentRow, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding report payload: %w", err)
	}

	generated := report.GeneratedAt.UTC()

	header := &InsightReportRow{
		ReportID:           report.ReportID,
		UserID:             report.UserID,
		GeneratedAt:        generated,
		TransactionCount:   int64(report.TransactionCount),
		AnomalyCount:       int64(len(report.Anomalies)),
		RisingPaymentCount: int64(len(report.RisingPayments)),
		Payload:            bigquery.NullJSON{JSONVal: string(payload), Valid: true},
	}
	if report.Forecast != nil {
		header.Next30DaySpend = bigquery.NullFloat64{Float64: report.Forecast.Next30DaySpend, Valid: true}
	}

	anomalies := make([]*AnomalyFindingRow, 0, len(report.Anomalies))
	for _, a := range report.Anomalies {
		row := &AnomalyFindingRow{
			ReportID:       report.ReportID,
			UserID:         report.UserID,
			TransactionID:  a.TransactionID,
			DetectedAt:     generated,
			AnomalyType:    string(a.Kind),
			Severity:       string(a.Severity),
			Confidence:     a.Confidence,
			ZScore:         a.Score,
			ActualValue:    a.ActualValue,
			Description:    a.Description,
			Recommendation: nullString(a.Recommendation),
		}
		if a.ExpectedValue != nil {
			row.ExpectedValue = bigquery.NullFloat64{Float64: *a.ExpectedValue, Valid: true}
		}
		anomalies = append(anomalies, row)
	}

	rising := make([]*RisingPaymentRow, 0, len(report.RisingPayments))
	for _, p := range report.RisingPayments {
		rising = append(rising, &RisingPaymentRow{
			ReportID:           report.ReportID,
			UserID:             report.UserID,
			DetectedAt:         generated,
			MerchantName:       p.MerchantName,
			Category:           nullString(p.Category),
			Frequency:          p.Frequency,
			CurrentAmount:      p.CurrentAmount,
			PreviousAmount:     p.PreviousAmount,
			IncreaseAmount:     p.IncreaseAmount,
			IncreasePercentage: p.IncreasePercentage,
			Confidence:         p.Confidence,
			LastPayment:        nullString(p.LastPayment),
		})
	}

	return header, anomalies, rising, nil
}
