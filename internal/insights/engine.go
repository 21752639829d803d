package insights

import (
	"context"
	"fmt"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Engine runs the anomaly and recurring-payment analyses. It holds only
// configuration, so a single Engine serves concurrent calls.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	return &Engine{cfg: cfg, log: log}, nil
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// DetectAnomalies runs the four detector passes in parallel and merges their
// findings. Fewer than ten transactions yield an empty result.
func (e *Engine) DetectAnomalies(ctx context.Context, txns []domain.Transaction) ([]domain.AnomalyFinding, error) {
	if len(txns) < minAnomalyRecords {
		return []domain.AnomalyFinding{}, nil
	}

	records, err := Normalize(txns)
	if err != nil {
		return nil, fmt.Errorf("DetectAnomalies: %w", err)
	}

	var statistical, multivariate, merchant, temporal []domain.AnomalyFinding

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		statistical = detectStatistical(records, e.cfg.AnomalyThreshold)
		return nil
	})
	g.Go(func() error {
		multivariate = detectMultivariate(records, e.cfg)
		return nil
	})
	g.Go(func() error {
		merchant = detectMerchant(records)
		return nil
	})
	g.Go(func() error {
		temporal = detectTemporal(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("DetectAnomalies: %w", err)
	}

	candidates := make([]domain.AnomalyFinding, 0, len(statistical)+len(multivariate)+len(merchant)+len(temporal))
	candidates = append(candidates, statistical...)
	candidates = append(candidates, multivariate...)
	candidates = append(candidates, merchant...)
	candidates = append(candidates, temporal...)

	findings := aggregate(candidates)

	e.log.Debug().
		Int("records", len(records)).
		Int("statistical", len(statistical)).
		Int("multivariate", len(multivariate)).
		Int("merchant", len(merchant)).
		Int("temporal", len(temporal)).
		Int("findings", len(findings)).
		Msg("Anomaly detection finished")

	return findings, nil
}

// DetectAnomalies runs anomaly detection with the default thresholds.
func DetectAnomalies(ctx context.Context, txns []domain.Transaction) ([]domain.AnomalyFinding, error) {
	return defaultEngine().DetectAnomalies(ctx, txns)
}

// DetectRisingPayments runs rising-payment detection with the default thresholds.
func DetectRisingPayments(ctx context.Context, txns []domain.Transaction) ([]domain.RisingPaymentFinding, error) {
	return defaultEngine().DetectRisingPayments(ctx, txns)
}

func defaultEngine() *Engine {
	return &Engine{cfg: DefaultConfig(), log: zerolog.Nop()}
}
