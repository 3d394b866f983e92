// Package policy defines the pluggable prediction-scoring contract used by
// the cache registry during pre-shatter scans. The registry computes the
// raw ingredients for each shard; a Scorer combines them into the final
// score that decides whether the shard is speculatively re-tuned.
package policy

// Input is everything a Scorer may consider for one shard.
type Input struct {
	// Metric is the shard's current health metric, roughly in [0,1].
	Metric float64
	// Temporal is the registry-level temporal weight (mean of the
	// registry orientation's time/resonance axes).
	Temporal float64
	// Resonance is the shard's accumulated resonance factor.
	Resonance float64
	// PatternMatch reports whether the shard's access pattern equals
	// the predicted one.
	PatternMatch bool
}

// Scorer shapes a prediction score in [0,1] from the inputs.
// Implementations must be pure and safe for concurrent use; the registry
// calls Score under its shared lock.
type Scorer interface {
	Score(in Input) float64
}
