package cache

import "fmt"

// AccessPattern classifies how a shard's buffer is expected to be
// accessed. The classifier itself is external; this core only consumes the
// value through per-pattern resonance coefficients.
type AccessPattern uint8

const (
	// Sequential — linear walks; the neutral pattern (coefficient 1.0).
	Sequential AccessPattern = iota
	// Strided — fixed-step jumps.
	Strided
	// Random — no structure; the only pattern whose coefficient falls
	// outside the resonance drift gate, so random traffic actively
	// degrades a shard's health.
	Random
	// Clustered — locality bursts.
	Clustered
	// Hybrid — mixed sequential/random.
	Hybrid
)

// Coefficient returns the resonance coefficient folded into a shard's
// resonance factor on every access under this pattern.
func (p AccessPattern) Coefficient() float64 {
	switch p {
	case Sequential:
		return 1.0
	case Strided:
		return 0.9
	case Clustered:
		return 0.85
	case Hybrid:
		return 0.8
	default: // Random
		return 0.7
	}
}

func (p AccessPattern) String() string {
	switch p {
	case Sequential:
		return "sequential"
	case Strided:
		return "strided"
	case Random:
		return "random"
	case Clustered:
		return "clustered"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("pattern(%d)", uint8(p))
	}
}

// ParsePattern maps a pattern name (as produced by String) back to the
// enum value. Used by CLI front ends.
func ParsePattern(s string) (AccessPattern, error) {
	switch s {
	case "sequential":
		return Sequential, nil
	case "strided":
		return Strided, nil
	case "random":
		return Random, nil
	case "clustered":
		return Clustered, nil
	case "hybrid":
		return Hybrid, nil
	default:
		return 0, fmt.Errorf("cache: unknown access pattern %q", s)
	}
}
