package harmony

import "math"

// Vector is the 4-component orientation of a health state. The axes are
// conventional names for independent modulation channels, not physical
// quantities: Material/Energy/Time/Resonance.
type Vector struct {
	Material  float64
	Energy    float64
	Time      float64
	Resonance float64
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.Material*v.Material +
		v.Energy*v.Energy +
		v.Time*v.Time +
		v.Resonance*v.Resonance)
}

// Normalize scales the vector to unit magnitude in place.
// A zero vector is left unchanged.
func (v *Vector) Normalize() {
	m := v.Magnitude()
	if m == 0 {
		return
	}
	v.Material /= m
	v.Energy /= m
	v.Time /= m
	v.Resonance /= m
}

// Temporal returns the mean of the Time and Resonance axes.
// The registry uses it to weight prediction scores.
func (v Vector) Temporal() float64 {
	return (v.Time + v.Resonance) / 2
}
