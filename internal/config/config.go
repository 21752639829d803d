package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/insights"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreBigQuery = "bigquery"
)

// Transaction sources for analysis jobs.
const (
	SourceBackend  = "backend"
	SourceBigQuery = "bigquery"
)

// Config is the service configuration read from the environment.
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	AnomalyThreshold       float64
	Contamination          float64
	RisingPaymentThreshold float64

	MaxTransactionsPerRequest int
	RequestTimeout            time.Duration
	CacheTTL                  time.Duration
	BackendURL                string
	RateLimitRPS              float64
	RateLimitBurst            int

	StoreBackend      string
	TransactionSource string
	SQLitePath        string
	ProjectID         string
	Dataset           string
	ReportBucket      string

	DiscordBotToken  string
	DiscordChannelID string

	MailgunDomain string
	MailgunAPIKey string
	AlertSender   string
	AlertEmail    string

	GeminiModel string

	AnalysisUserIDs  []string
	AnalysisInterval time.Duration
}

// Load reads an optional .env file and then the process environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}

	cfg := &Config{
		Port:           env.str("PORT", "5000"),
		AllowedOrigins: env.list("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:4000"),
		LogLevel:       env.str("LOG_LEVEL", "info"),
		LogFormat:      env.str("LOG_FORMAT", "console"),

		AnomalyThreshold:       env.float("ANOMALY_THRESHOLD", 3.0),
		Contamination:          env.float("ISOLATION_FOREST_CONTAMINATION", 0.1),
		RisingPaymentThreshold: env.float("RISING_PAYMENT_THRESHOLD", 5.0),

		MaxTransactionsPerRequest: env.int("MAX_TRANSACTIONS_PER_REQUEST", 10000),
		RequestTimeout:            env.duration("REQUEST_TIMEOUT", 30*time.Second),
		CacheTTL:                  env.duration("CACHE_TTL", 300*time.Second),
		BackendURL:                strings.TrimRight(env.str("BACKEND_URL", "http://localhost:4000"), "/"),
		RateLimitRPS:              env.float("RATE_LIMIT_RPS", 10),
		RateLimitBurst:            env.int("RATE_LIMIT_BURST", 30),

		StoreBackend:      strings.ToLower(env.str("STORE_BACKEND", StoreMemory)),
		TransactionSource: strings.ToLower(env.str("TRANSACTION_SOURCE", SourceBackend)),
		SQLitePath:        env.str("SQLITE_PATH", "spend-insights.db"),
		ProjectID:         env.str("GCP_PROJECT_ID", ""),
		Dataset:           env.str("BQ_DATASET", "spend_insights"),
		ReportBucket:      env.str("REPORT_BUCKET", ""),

		DiscordBotToken:  env.str("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: env.str("DISCORD_CHANNEL_ID", ""),

		MailgunDomain: env.str("MAILGUN_DOMAIN", ""),
		MailgunAPIKey: env.str("MAILGUN_PRIVATE_API_KEY", ""),
		AlertSender:   env.str("ALERT_SENDER_EMAIL", ""),
		AlertEmail:    env.str("ALERT_EMAIL", ""),

		GeminiModel: env.str("GEMINI_MODEL", ""),

		AnalysisUserIDs:  env.list("ANALYSIS_USER_IDS", ""),
		AnalysisInterval: env.duration("ANALYSIS_INTERVAL", time.Hour),
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Insights().Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	if c.MaxTransactionsPerRequest <= 0 {
		return fmt.Errorf("MAX_TRANSACTIONS_PER_REQUEST must be positive, got %d", c.MaxTransactionsPerRequest)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.AnalysisInterval <= 0 {
		return fmt.Errorf("ANALYSIS_INTERVAL must be positive, got %s", c.AnalysisInterval)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreBigQuery:
		if c.ProjectID == "" || c.Dataset == "" {
			return fmt.Errorf("GCP_PROJECT_ID and BQ_DATASET are required for the bigquery store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.TransactionSource {
	case SourceBackend:
	case SourceBigQuery:
		if c.ProjectID == "" || c.Dataset == "" {
			return fmt.Errorf("GCP_PROJECT_ID and BQ_DATASET are required for the bigquery transaction source")
		}
	default:
		return fmt.Errorf("unknown TRANSACTION_SOURCE %q", c.TransactionSource)
	}

	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if c.MailgunDomain != "" && (c.MailgunAPIKey == "" || c.AlertSender == "" || c.AlertEmail == "") {
		return fmt.Errorf("MAILGUN_DOMAIN requires MAILGUN_PRIVATE_API_KEY, ALERT_SENDER_EMAIL and ALERT_EMAIL")
	}
	return nil
}

// Insights returns the engine thresholds, defaults overlaid with the
// configured values.
func (c *Config) Insights() insights.Config {
	cfg := insights.DefaultConfig()
	cfg.AnomalyThreshold = c.AnomalyThreshold
	cfg.Contamination = c.Contamination
	cfg.RisingPaymentThreshold = c.RisingPaymentThreshold
	return cfg
}

// envReader collects the first parse failure so Load can report it once.
type envReader struct {
	lookup   func(string) (string, bool)
	firstErr error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, value string, err error) {
	if e.firstErr == nil {
		e.firstErr = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (e *envReader) err() error { return e.firstErr }

func (e *envReader) str(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) list(key, fallback string) []string {
	v := e.str(key, fallback)
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *envReader) int(key string, fallback int) int {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return n
}

func (e *envReader) float(key string, fallback float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return f
}

// duration accepts Go durations ("30s") or a bare number of seconds.
func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return d
}
