package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{
	MaxRetries:    2,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, time.Second, zerolog.Nop(), WithRetryConfig(fastRetry))
	c.now = func() time.Time { return time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchTransactions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer user-1", r.Header.Get("Authorization"))
		io.WriteString(w, `{"transactions":[
			{"id":"t1","posted_at":"2024-06-01T10:00:00Z","amount":-12.5,"merchant_name":"Cafe","category":"Food & Dining"},
			{"id":"t2","posted_at":"2024-06-02T10:00:00Z","amount":"1500.00","merchant_name":"Employer","category":"Income"}
		]}`)
	})

	txns, err := c.FetchTransactions(context.Background(), "user-1", 250)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "t1", txns[0].ID)
	assert.Equal(t, "-12.5", txns[0].Amount.String())
	assert.Equal(t, "1500", txns[1].Amount.String())
}

func TestFetchTransactionsDefaultLimitAndEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		io.WriteString(w, `{}`)
	})

	txns, err := c.FetchTransactions(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
}

func TestFetchTransactionsBadAmountIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"transactions":[{"id":"t1","posted_at":"2024-06-01T10:00:00Z","amount":"lots"}]}`)
	})

	_, err := c.FetchTransactions(context.Background(), "user-1", 10)
	require.Error(t, err)
	assert.True(t, domain.IsDataError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"transactions":[]}`)
	})

	_, err := c.FetchTransactions(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "bad token")
	})

	_, err := c.FetchTransactions(context.Background(), "user-1", 10)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "bad token", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.SendInsightsUpdate(context.Background(), "user-1", &domain.InsightReport{ReportID: "r1"})
	require.Error(t, err)
	assert.Equal(t, int32(fastRetry.MaxRetries+1), calls.Load())
}

func TestSendInsightsUpdate(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/insights/ai-update", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	err := c.SendInsightsUpdate(context.Background(), "user-1", &domain.InsightReport{ReportID: "r1", UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", got["user_id"])
	assert.Equal(t, "2024-06-03T08:00:00Z", got["timestamp"])
	assert.Equal(t, "spend-insights", got["source"])
	assert.Equal(t, "r1", got["insights"].(map[string]interface{})["report_id"])
}

func TestNotifyAnomalyDefaultsSeverity(t *testing.T) {
	var got anomalyAlert
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alerts/anomaly", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, c.NotifyAnomaly(context.Background(), "user-1", domain.AnomalyFinding{TransactionID: "t1"}))
	assert.Equal(t, domain.SeverityMedium, got.Severity)
	assert.Equal(t, "t1", got.Anomaly.TransactionID)
}

func TestNotifyAnomaliesCollectsFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var alert anomalyAlert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		calls.Add(1)
		if alert.Anomaly.TransactionID != "ok" {
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	err := c.NotifyAnomalies(context.Background(), "user-1", []domain.AnomalyFinding{
		{TransactionID: "bad1", Severity: domain.SeverityHigh},
		{TransactionID: "ok", Severity: domain.SeverityHigh},
		{TransactionID: "bad2", Severity: domain.SeverityHigh},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Equal(t, int32(3), calls.Load())

	assert.NoError(t, c.NotifyAnomalies(context.Background(), "user-1", nil))
}

func TestUpdateMerchantCategories(t *testing.T) {
	var got categorySuggestions
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categorize/ai-suggestions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	suggestions := []domain.MerchantTagSuggestion{{MerchantName: "Uber Trip", SuggestedCategory: "Transportation"}}
	require.NoError(t, c.UpdateMerchantCategories(context.Background(), "user-1", suggestions))
	assert.Equal(t, suggestions[0].MerchantName, got.Suggestions[0].MerchantName)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transport", err: errors.New("connection refused"), want: true},
		{name: "server error", err: &StatusError{StatusCode: 500}, want: true},
		{name: "throttled", err: &StatusError{StatusCode: 429}, want: true},
		{name: "not found", err: &StatusError{StatusCode: 404}, want: false},
		{name: "data error", err: &domain.DataError{Field: "amount", Err: errors.New("bad")}, want: false},
		{name: "decode", err: &decodeError{err: errors.New("eof")}, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 1}

	attempts := 0
	_, err := WithRetry(ctx, cfg, func(ctx context.Context) (int, error) {
		attempts++
		cancel()
		return 0, errors.New("flaky")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
