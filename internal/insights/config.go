package insights

import "fmt"

// Config holds the tunable thresholds of the engine. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// AnomalyThreshold is the global z-score cut-off.
	AnomalyThreshold float64

	// Contamination is the expected share of outliers for the isolation forest.
	Contamination float64

	// Trees is the number of isolation trees per fit.
	Trees int

	// MaxSamples caps the sub-sample drawn for each tree.
	MaxSamples int

	// Seed makes the forest deterministic across calls.
	Seed int64

	// RisingPaymentThreshold is the minimum increase percentage for a rising payment.
	RisingPaymentThreshold float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AnomalyThreshold:       3.0,
		Contamination:          0.1,
		Trees:                  100,
		MaxSamples:             256,
		Seed:                   42,
		RisingPaymentThreshold: 5.0,
	}
}

// Validate checks that every threshold is usable.
func (c Config) Validate() error {
	if c.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly threshold must be positive, got %v", c.AnomalyThreshold)
	}
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5], got %v", c.Contamination)
	}
	if c.Trees <= 0 {
		return fmt.Errorf("trees must be positive, got %d", c.Trees)
	}
	if c.MaxSamples < 2 {
		return fmt.Errorf("max samples must be at least 2, got %d", c.MaxSamples)
	}
	if c.RisingPaymentThreshold < 0 {
		return fmt.Errorf("rising payment threshold must not be negative, got %v", c.RisingPaymentThreshold)
	}
	return nil
}
