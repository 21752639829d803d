package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger entry as received from the backend or an API caller.
// Amount is signed: negative for money out, positive for money in.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id,omitempty"`
	PostedAt     string          `json:"posted_at"`
	Amount       decimal.Decimal `json:"amount"`
	MerchantName string          `json:"merchant_name"`
	Category     string          `json:"category"`
	Description  string          `json:"description,omitempty"`
	IsRecurring  bool            `json:"is_recurring"`
}

// transactionJSON mirrors Transaction with the amount left raw so that a bad
// amount surfaces as a DataError instead of a generic decode failure.
type transactionJSON struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id,omitempty"`
	PostedAt     string          `json:"posted_at"`
	Amount       json.RawMessage `json:"amount"`
	MerchantName string          `json:"merchant_name"`
	Category     string          `json:"category"`
	Description  string          `json:"description,omitempty"`
	IsRecurring  bool            `json:"is_recurring"`
}

// UnmarshalJSON accepts the amount as a JSON number or a numeric string.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw.Amount) == 0 || bytes.Equal(raw.Amount, []byte("null")) {
		return &DataError{TransactionID: raw.ID, Field: "amount", Err: errors.New("amount is required")}
	}

	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw.Amount); err != nil {
		return &DataError{TransactionID: raw.ID, Field: "amount", Value: string(raw.Amount), Err: err}
	}

	*t = Transaction{
		ID:           raw.ID,
		AccountID:    raw.AccountID,
		PostedAt:     raw.PostedAt,
		Amount:       amount,
		MerchantName: raw.MerchantName,
		Category:     raw.Category,
		Description:  raw.Description,
		IsRecurring:  raw.IsRecurring,
	}
	return nil
}

// MarshalJSON writes the amount as a JSON number.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:           t.ID,
		AccountID:    t.AccountID,
		PostedAt:     t.PostedAt,
		Amount:       json.RawMessage(t.Amount.String()),
		MerchantName: t.MerchantName,
		Category:     t.Category,
		Description:  t.Description,
		IsRecurring:  t.IsRecurring,
	})
}

// IsSpending reports whether the transaction is an outflow.
func (t Transaction) IsSpending() bool {
	return t.Amount.IsNegative()
}

// NormalizedRecord is a transaction with parsed time features, owned by a single
// analysis call.
type NormalizedRecord struct {
	ID         string
	Timestamp  time.Time
	Amount     float64 // signed
	AbsAmount  float64
	Category   string
	Merchant   string
	Hour       int
	DayOfWeek  int // 0=Monday..6=Sunday
	DayOfMonth int
	Recurring  bool
}
