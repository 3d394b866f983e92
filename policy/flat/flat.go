// Package flat implements a prediction scorer without the pattern-match
// bonus. Useful when the caller-supplied access-pattern classifier is
// unreliable and pre-tuning should depend on health alone.
package flat

import "github.com/IvanBrykalov/harmonycache/policy"

type flatScorer struct{}

// New returns a scorer that ignores the predicted pattern entirely:
// metric × temporal × (1+resonance)/2, clamped to [0,1].
func New() policy.Scorer { return flatScorer{} }

func (flatScorer) Score(in policy.Input) float64 {
	s := in.Metric * in.Temporal * (1 + in.Resonance) / 2

	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
