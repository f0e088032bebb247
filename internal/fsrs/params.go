package fsrs

import (
	"fmt"
	"math"
)

// WeightCount is the length of the FSRS parameter vector.
const WeightCount = 17

// DefaultWeights returns the stock parameter vector. The values are the
// published FSRS-4 defaults; replace them with personally optimized weights
// via configuration when available.
func DefaultWeights() [WeightCount]float64 {
	return [WeightCount]float64{
		0.4, 0.6, 2.4, 5.8, 4.93, 0.94, 0.86, 0.01, 1.49,
		0.14, 0.94, 2.18, 0.05, 0.34, 1.26, 0.29, 2.61,
	}
}

// Params configures the memory model.
type Params struct {
	// Weights is the 17-element FSRS parameter vector.
	Weights [WeightCount]float64
	// DesiredRetention is the recall probability intervals are solved for.
	DesiredRetention float64
	// MaxIntervalDays caps any scheduled review interval.
	MaxIntervalDays int
}

// DefaultParams returns parameters with stock weights, 0.9 retention and a
// one-year interval cap.
func DefaultParams() Params {
	return Params{
		Weights:          DefaultWeights(),
		DesiredRetention: 0.9,
		MaxIntervalDays:  365,
	}
}

// Validate checks the parameters for values the model cannot work with.
func (p Params) Validate() error {
	if p.DesiredRetention <= 0 || p.DesiredRetention > 1 {
		return fmt.Errorf("desired retention must be in (0, 1], got %v", p.DesiredRetention)
	}
	if p.MaxIntervalDays < 1 {
		return fmt.Errorf("max interval must be at least 1 day, got %d", p.MaxIntervalDays)
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight w[%d] must be finite, got %v", i, w)
		}
	}
	return nil
}
