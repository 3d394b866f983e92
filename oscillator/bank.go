// Package oscillator implements the harmonic bank that produces the bounded
// multiplicative modulation factor consumed by cache shards. A Bank is a
// short series of harmonics derived from one base frequency; Apply folds
// every harmonic into an input value and clamps the result to [0,1].
//
// Like package harmony, the bank is pure computation: callers pass the
// current time (UnixNano) explicitly.
package oscillator

import (
	"errors"
	"math"
)

const (
	// MinFrequency and MaxFrequency bound the accepted base frequency (Hz).
	MinFrequency = 20.0
	MaxFrequency = 20000.0

	// MaxHarmonics caps the series length regardless of base frequency.
	MaxHarmonics = 12
)

var (
	// ErrFrequencyOutOfRange is returned by New for a base frequency
	// outside [MinFrequency, MaxFrequency].
	ErrFrequencyOutOfRange = errors.New("oscillator: base frequency out of range")

	// ErrResonanceLost is returned by Update when the mean harmonic
	// stability falls below 0.5.
	ErrResonanceLost = errors.New("oscillator: overall stability lost")

	// ErrHarmonicInstability is returned by Update when a harmonic
	// parameter stops being finite.
	ErrHarmonicInstability = errors.New("oscillator: harmonic parameter not finite")
)

// Harmonic is one component of the bank.
type Harmonic struct {
	Frequency float64
	Amplitude float64
	Phase     float64
	Stability float64
}

// Bank is a harmonic series over one base frequency plus a shared phase
// accumulator. Not safe for concurrent use; the owner serializes access.
type Bank struct {
	baseFrequency    float64
	harmonics        []Harmonic
	phaseAccumulator float64
	overallStability float64
	lastUpdate       int64 // UnixNano of the last phase advance
}

// New builds a bank for baseFreq. Harmonic i has frequency base·(i+1),
// amplitude 1/(i+1), zero phase, and full stability; generation stops at
// MaxHarmonics or once the next frequency would exceed MaxFrequency.
func New(baseFreq float64, now int64) (*Bank, error) {
	if baseFreq < MinFrequency || baseFreq > MaxFrequency {
		return nil, ErrFrequencyOutOfRange
	}

	b := &Bank{
		baseFrequency:    baseFreq,
		overallStability: 1,
		lastUpdate:       now,
	}
	for i := 0; i < MaxHarmonics; i++ {
		f := baseFreq * float64(i+1)
		if f > MaxFrequency {
			break
		}
		b.harmonics = append(b.harmonics, Harmonic{
			Frequency: f,
			Amplitude: 1 / float64(i+1),
			Phase:     0,
			Stability: 1,
		})
	}
	return b, nil
}

// advance moves the phase accumulator to now and returns the elapsed
// seconds.
func (b *Bank) advance(now int64) float64 {
	dt := float64(now-b.lastUpdate) / 1e9
	if dt < 0 {
		dt = 0
	}
	b.phaseAccumulator = math.Mod(b.phaseAccumulator+2*math.Pi*b.baseFrequency*dt, 2*math.Pi)
	b.lastUpdate = now
	return dt
}

// Apply folds the bank into input and returns the modulation factor,
// clamped to [0,1]. Each harmonic contributes a factor of
// 1 + 0.1·amplitude·sin(phase+accumulator)·stability.
func (b *Bank) Apply(input float64, now int64) float64 {
	b.advance(now)

	out := input
	for _, h := range b.harmonics {
		out *= 1 + 0.1*h.Amplitude*math.Sin(h.Phase+b.phaseAccumulator)*h.Stability
	}
	return clamp(out, 0, 1)
}

// Update ages the bank: stability decays exponentially (clamped to
// [0.5,1.0]), amplitude drifts with the accumulated phase (clamped to
// [0.1,1.0]), and the overall stability is recomputed as the mean.
func (b *Bank) Update(now int64) error {
	dt := b.advance(now)

	decay := math.Exp(-0.1 * dt)
	var sum float64
	for i := range b.harmonics {
		h := &b.harmonics[i]
		h.Stability = clamp(h.Stability*decay, 0.5, 1.0)
		h.Amplitude = clamp(h.Amplitude*(1+math.Cos(h.Phase+b.phaseAccumulator)*0.01), 0.1, 1.0)
		if !finite(h.Stability) || !finite(h.Amplitude) || !finite(h.Frequency) {
			return ErrHarmonicInstability
		}
		sum += h.Stability
	}

	b.overallStability = 0
	if n := len(b.harmonics); n > 0 {
		b.overallStability = sum / float64(n)
	}
	if b.overallStability < 0.5 {
		return ErrResonanceLost
	}
	return nil
}

// BaseFrequency returns the base frequency the series was generated from.
func (b *Bank) BaseFrequency() float64 { return b.baseFrequency }

// OverallStability returns the mean harmonic stability as of the last
// Update.
func (b *Bank) OverallStability() float64 { return b.overallStability }

// Harmonics returns a copy of the current harmonic series.
func (b *Bank) Harmonics() []Harmonic {
	out := make([]Harmonic, len(b.harmonics))
	copy(out, b.harmonics)
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
