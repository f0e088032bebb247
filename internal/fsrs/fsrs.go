// Package fsrs implements the FSRS memory model: stateless numeric
// functions mapping (difficulty, stability, retrievability, grade) to the
// next card parameters. The functions are deterministic and side-effect
// free; given the same inputs and weight vector they reproduce identical
// outputs, which is what makes the model independently testable.
package fsrs

import (
	"math"

	"github.com/tsuji/bunkei/internal/models"
)

// Engine evaluates the memory model for one fixed parameter vector.
type Engine struct {
	w         [WeightCount]float64
	retention float64
	maxIvl    int
}

// New creates an Engine after validating the parameters.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		w:         p.Weights,
		retention: p.DesiredRetention,
		maxIvl:    p.MaxIntervalDays,
	}, nil
}

// Retrievability computes R(t, S) = (1 + t/(9S))^-1, the estimated recall
// probability t elapsed days after a review at stability S. Defined as 0
// when S <= 0 (a card that never graduated has no memory trace to decay).
func (e *Engine) Retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return 1 / (1 + elapsedDays/(9*stability))
}

// NextInterval computes I(S) = round(9*S*(1/retention - 1)) in days,
// clamped to [1, maxInterval].
func (e *Engine) NextInterval(stability float64) int {
	if stability <= 0 {
		return 1
	}
	ivl := int(math.Round(9 * stability * (1/e.retention - 1)))
	if ivl < 1 {
		ivl = 1
	}
	if ivl > e.maxIvl {
		ivl = e.maxIvl
	}
	return ivl
}

// InitStability returns S₀(G) = w[G-1].
func (e *Engine) InitStability(g models.Grade) float64 {
	return e.w[g-1]
}

// InitDifficulty returns D₀(G) = clamp(w[4] - (G-3)*w[5], 1, 10).
func (e *Engine) InitDifficulty(g models.Grade) float64 {
	return clampDifficulty(e.w[4] - float64(g-models.Good)*e.w[5])
}

// NextReviewStability computes stability after a successful recall:
//
//	S' = S * (e^w[8] * (11-D) * S^(-w[9]) * (e^(w[10]*(1-R)) - 1) * hardPenalty * easyBonus + 1)
//
// where hardPenalty = w[15] iff G = Hard and easyBonus = w[16] iff G = Easy.
func (e *Engine) NextReviewStability(d, s, r float64, g models.Grade) float64 {
	hardPenalty := 1.0
	if g == models.Hard {
		hardPenalty = e.w[15]
	}
	easyBonus := 1.0
	if g == models.Easy {
		easyBonus = e.w[16]
	}
	return s * (math.Exp(e.w[8])*
		(11-d)*
		math.Pow(s, -e.w[9])*
		(math.Exp(e.w[10]*(1-r))-1)*
		hardPenalty*easyBonus + 1)
}

// NextForgetStability computes stability after a lapse:
//
//	S' = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^(w[14]*(1-R))
func (e *Engine) NextForgetStability(d, s, r float64) float64 {
	return e.w[11] *
		math.Pow(d, -e.w[12]) *
		(math.Pow(s+1, e.w[13]) - 1) *
		math.Exp(e.w[14]*(1-r))
}

// NextDifficulty computes the updated difficulty after a review:
//
//	D' = clamp(w[7]*D₀(Good) + (1-w[7])*(D - w[6]*(G-3)), 1, 10)
//
// The w[7] term reverts difficulty toward its initial Good value so one
// harsh stretch of grades does not pin a card at the extremes forever.
func (e *Engine) NextDifficulty(d float64, g models.Grade) float64 {
	next := d - e.w[6]*float64(g-models.Good)
	return clampDifficulty(e.w[7]*e.InitDifficulty(models.Good) + (1-e.w[7])*next)
}

// clampDifficulty bounds difficulty to [1, 10].
func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
