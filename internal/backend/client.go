package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// DefaultTransactionLimit is how many recent transactions FetchTransactions
// asks for when the caller passes zero.
const DefaultTransactionLimit = 1000

const source = "spend-insights"

// StatusError is returned for a non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// decodeError marks a 2xx response whose body could not be decoded.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Client talks to the ledger backend. The user ID doubles as the bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	log        zerolog.Logger
	now        func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithRetryConfig overrides DefaultRetryConfig.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      DefaultRetryConfig,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// FetchTransactions returns up to limit recent transactions for a user.
func (c *Client) FetchTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var resp transactionsResponse
	if err := c.do(ctx, http.MethodGet, "/transactions?"+query.Encode(), userID, nil, &resp); err != nil {
		return nil, fmt.Errorf("FetchTransactions: user %s: %w", userID, err)
	}
	if resp.Transactions == nil {
		resp.Transactions = []domain.Transaction{}
	}

	c.log.Debug().Str("user_id", userID).Int("transactions", len(resp.Transactions)).Msg("Fetched transactions")
	return resp.Transactions, nil
}

type insightsUpdate struct {
	UserID    string                `json:"user_id"`
	Timestamp string                `json:"timestamp"`
	Insights  *domain.InsightReport `json:"insights"`
	Source    string                `json:"source"`
}

// SendInsightsUpdate pushes a finished report to the backend.
func (c *Client) SendInsightsUpdate(ctx context.Context, userID string, report *domain.InsightReport) error {
	payload := insightsUpdate{
		UserID:    userID,
		Timestamp: c.timestamp(),
		Insights:  report,
		Source:    source,
	}
	if err := c.do(ctx, http.MethodPost, "/insights/ai-update", userID, payload, nil); err != nil {
		return fmt.Errorf("SendInsightsUpdate: user %s: %w", userID, err)
	}

	c.log.Info().Str("user_id", userID).Str("report_id", report.ReportID).Msg("Sent insights update")
	return nil
}

type anomalyAlert struct {
	UserID    string                `json:"user_id"`
	Anomaly   domain.AnomalyFinding `json:"anomaly"`
	Timestamp string                `json:"timestamp"`
	Severity  domain.Severity       `json:"severity"`
}

// NotifyAnomaly raises one anomaly alert. A finding without severity is
// sent as medium.
func (c *Client) NotifyAnomaly(ctx context.Context, userID string, anomaly domain.AnomalyFinding) error {
	severity := anomaly.Severity
	if severity == "" {
		severity = domain.SeverityMedium
	}
	payload := anomalyAlert{
		UserID:    userID,
		Anomaly:   anomaly,
		Timestamp: c.timestamp(),
		Severity:  severity,
	}
	if err := c.do(ctx, http.MethodPost, "/alerts/anomaly", userID, payload, nil); err != nil {
		return fmt.Errorf("NotifyAnomaly: user %s transaction %s: %w", userID, anomaly.TransactionID, err)
	}
	return nil
}

// NotifyAnomalies raises an alert per finding. Every finding is attempted;
// the failures are returned together.
func (c *Client) NotifyAnomalies(ctx context.Context, userID string, anomalies []domain.AnomalyFinding) error {
	var result *multierror.Error
	for _, a := range anomalies {
		if err := c.NotifyAnomaly(ctx, userID, a); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

type categorySuggestions struct {
	UserID      string                         `json:"user_id"`
	Suggestions []domain.MerchantTagSuggestion `json:"suggestions"`
	Timestamp   string                         `json:"timestamp"`
}

// UpdateMerchantCategories sends merchant recategorisation suggestions.
func (c *Client) UpdateMerchantCategories(ctx context.Context, userID string, suggestions []domain.MerchantTagSuggestion) error {
	payload := categorySuggestions{
		UserID:      userID,
		Suggestions: suggestions,
		Timestamp:   c.timestamp(),
	}
	if err := c.do(ctx, http.MethodPost, "/categorize/ai-suggestions", userID, payload, nil); err != nil {
		return fmt.Errorf("UpdateMerchantCategories: user %s: %w", userID, err)
	}
	return nil
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

// do sends one request with retries and decodes a JSON response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, path, userID string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	_, err := WithRetry(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.send(ctx, method, path, userID, payload, out)
	})
	return err
}

func (c *Client) send(ctx context.Context, method, path, userID string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+userID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("Backend returned error status")
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if domain.IsDataError(err) {
			return err
		}
		return &decodeError{err: err}
	}
	return nil
}
