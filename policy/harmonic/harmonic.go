// Package harmonic implements the default prediction scorer.
package harmonic

import "github.com/IvanBrykalov/harmonycache/policy"

// patternBonus is the multiplier applied when the shard's access pattern
// already matches the prediction.
const patternBonus = 1.2

type harmonicScorer struct{}

// New returns the default scorer: metric × temporal, ×1.2 on a pattern
// match, weighted by (1+resonance)/2, clamped to [0,1].
func New() policy.Scorer { return harmonicScorer{} }

func (harmonicScorer) Score(in policy.Input) float64 {
	s := in.Metric * in.Temporal
	if in.PatternMatch {
		s *= patternBonus
	}
	s *= (1 + in.Resonance) / 2

	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
