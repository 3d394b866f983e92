package harmonic

import (
	"math"
	"testing"

	"github.com/IvanBrykalov/harmonycache/policy"
)

func TestScore_Formula(t *testing.T) {
	t.Parallel()

	s := New()

	// No bonus: 0.9 * 0.8 * (1+1)/2 = 0.72.
	got := s.Score(policy.Input{Metric: 0.9, Temporal: 0.8, Resonance: 1.0})
	if math.Abs(got-0.72) > 1e-12 {
		t.Fatalf("score = %v, want 0.72", got)
	}

	// Pattern match multiplies by 1.2: 0.72 * 1.2 = 0.864.
	got = s.Score(policy.Input{Metric: 0.9, Temporal: 0.8, Resonance: 1.0, PatternMatch: true})
	if math.Abs(got-0.864) > 1e-12 {
		t.Fatalf("score with match = %v, want 0.864", got)
	}
}

func TestScore_Clamped(t *testing.T) {
	t.Parallel()

	s := New()

	// Large temporal weight pushes past 1: must clamp.
	if got := s.Score(policy.Input{Metric: 1, Temporal: 2, Resonance: 1, PatternMatch: true}); got != 1 {
		t.Fatalf("score = %v, want clamp to 1", got)
	}
	// Negative temporal (decayed axes can undershoot) clamps at 0.
	if got := s.Score(policy.Input{Metric: 1, Temporal: -0.5, Resonance: 1}); got != 0 {
		t.Fatalf("score = %v, want clamp to 0", got)
	}
}
