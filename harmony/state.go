// Package harmony implements the decaying per-entity health score used by
// the cache to gate admission, pre-tuning, and eviction. A State combines a
// scalar quality level, a 4-component orientation vector, and a tracked
// frequency; the level decays exponentially between evolutions and is
// modulated sinusoidally against a reference frequency.
//
// All computation is pure: callers pass the current time explicitly
// (UnixNano), so tests are deterministic without a clock abstraction.
package harmony

import (
	"errors"
	"math"
)

// Phi is the golden ratio. It appears as the pattern-strength exponent and
// the resonance penalty base. Like the rest of the tuning constants it is
// policy, not physics; see Tuning.
const Phi = 1.618033988749895

// BaseFrequency is the conventional reference frequency (Hz) the level
// modulation is computed against.
const BaseFrequency = 432.0

// MinViableLevel is the floor below which an entity counts as failed.
const MinViableLevel = 0.5

// MaxResonanceDrift bounds how far a resonance re-target may move the
// frequency, as a fraction of the current frequency.
const MaxResonanceDrift = 0.2

var (
	// ErrHarmonyLost is reported by Evolve once the level decays below
	// MinViableLevel. The state keeps evolving; the error is a signal,
	// not a terminal condition.
	ErrHarmonyLost = errors.New("harmony: level below viable threshold")

	// ErrResonanceMismatch is reported by ApplyResonance when the target
	// frequency drifts more than MaxResonanceDrift from the current one.
	ErrResonanceMismatch = errors.New("harmony: resonance target out of range")
)

// Tuning holds the evolution constants. The defaults reproduce the
// reference scoring behavior; treat the whole set as a replaceable policy.
type Tuning struct {
	// DecayRate is the exponential level decay per second.
	DecayRate float64

	// Per-axis modulation weights applied alongside level decay.
	MaterialWeight  float64
	EnergyWeight    float64
	TimeWeight      float64
	ResonanceWeight float64

	// StabilityGain scales how strongly modulation moves stability.
	StabilityGain float64
}

// DefaultTuning returns the reference constants.
func DefaultTuning() Tuning {
	return Tuning{
		DecayRate:       0.01,
		MaterialWeight:  0.1,
		EnergyWeight:    0.15,
		TimeWeight:      0.05,
		ResonanceWeight: 0.2,
		StabilityGain:   0.1 * Phi,
	}
}

// State is a decaying quality score plus orientation vector.
// Not safe for concurrent use; the owner serializes access.
type State struct {
	vec             Vector
	level           float64
	frequency       float64
	stability       float64
	patternStrength float64
	lastEvolution   int64 // UnixNano of the last Evolve
	tun             Tuning
}

// NewState creates a fresh state at full health, tracking baseFreq.
// The vector axes start at 2.0 so that Metric() of a fresh state is
// exactly 1.0 (magnitude 4 over the divisor 4).
func NewState(baseFreq float64, now int64) *State {
	return NewStateTuned(baseFreq, DefaultTuning(), now)
}

// NewStateTuned is NewState with explicit tuning constants.
func NewStateTuned(baseFreq float64, tun Tuning, now int64) *State {
	return &State{
		vec:             Vector{Material: 2, Energy: 2, Time: 2, Resonance: 2},
		level:           1,
		frequency:       baseFreq,
		stability:       1,
		patternStrength: 1,
		lastEvolution:   now,
		tun:             tun,
	}
}

// Evolve advances the state to now against a reference frequency.
// The level decays exponentially over the elapsed time, the vector is
// modulated per axis, stability shifts with the modulation (clamped at
// zero), and pattern strength is recomputed as level^φ.
//
// lastEvolution always advances, on success and on failure. Returns
// ErrHarmonyLost once the level has decayed below MinViableLevel.
func (s *State) Evolve(referenceFreq float64, now int64) error {
	dt := float64(now-s.lastEvolution) / 1e9
	if dt < 0 {
		dt = 0
	}

	decay := math.Exp(-s.tun.DecayRate * dt)
	s.level *= decay

	ratio := referenceFreq / BaseFrequency
	mod := math.Sin(ratio * 2 * math.Pi * dt)

	s.vec.Material *= decay * (1 + s.tun.MaterialWeight*mod)
	s.vec.Energy *= decay * (1 + s.tun.EnergyWeight*mod)
	s.vec.Time *= decay * (1 + s.tun.TimeWeight*mod)
	s.vec.Resonance *= decay * (1 + s.tun.ResonanceWeight*mod)

	s.stability = math.Max(0, s.stability+mod*s.tun.StabilityGain)
	s.patternStrength = math.Pow(s.level, Phi)
	s.lastEvolution = now

	if s.level < MinViableLevel {
		return ErrHarmonyLost
	}
	return nil
}

// ApplyResonance re-targets the tracked frequency. The allowed drift is
// bounded by MaxResonanceDrift; within bounds the level pays a φ^(-drift)
// penalty and the state evolves against the new target. A failed Evolve
// propagates (the frequency change itself has already been committed).
func (s *State) ApplyResonance(targetFreq float64, now int64) error {
	ratio := targetFreq / s.frequency
	drift := math.Abs(1 - ratio)
	if drift > MaxResonanceDrift {
		return ErrResonanceMismatch
	}

	s.frequency = targetFreq
	s.level *= math.Pow(Phi, -drift)
	return s.Evolve(targetFreq, now)
}

// Metric collapses the state into the single scalar used for eviction and
// prediction decisions: level·stability·patternStrength·|vector|/4.
// Roughly in [0,1] for a healthy entity.
func (s *State) Metric() float64 {
	return s.level * s.stability * s.patternStrength * s.vec.Magnitude() / 4
}

// IsStable reports whether the state is comfortably above all floors.
func (s *State) IsStable() bool {
	return s.stability >= 0.8 && s.level >= MinViableLevel && s.patternStrength >= 0.7
}

// Level returns the current quality level.
func (s *State) Level() float64 { return s.level }

// Frequency returns the tracked frequency.
func (s *State) Frequency() float64 { return s.frequency }

// Stability returns the current stability (≥ 0).
func (s *State) Stability() float64 { return s.stability }

// PatternStrength returns level^φ as of the last evolution.
func (s *State) PatternStrength() float64 { return s.patternStrength }

// Orientation returns a copy of the orientation vector.
func (s *State) Orientation() Vector { return s.vec }
