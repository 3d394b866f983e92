package cache

import (
	"time"

	"github.com/IvanBrykalov/harmonycache/harmony"
	"github.com/IvanBrykalov/harmonycache/policy"
)

// Default configuration values applied by New for zero Options fields.
const (
	// DefaultHarmonyThreshold is the health metric floor below which
	// shards are evicted and aggregate health counts as disrupted.
	DefaultHarmonyThreshold = 0.87

	// DefaultResonanceFreq is the oscillator base frequency (Hz).
	DefaultResonanceFreq = 432.0

	// DefaultMaxShards bounds the number of resident shards.
	DefaultMaxShards = 1024

	// DefaultOptimizeInterval gates MaybeOptimize.
	DefaultOptimizeInterval = 5 * time.Second

	// DefaultGrowthFactor is the golden ratio; informational for this
	// core (external sizing heuristics may consume it).
	DefaultGrowthFactor = harmony.Phi
)

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Allocator produces the byte buffers backing shards. Implementations
// must return 64-byte-aligned buffers and report failure distinctly
// rather than panicking.
type Allocator interface {
	Alloc(size int) ([]byte, error)
}

// Options configures a Registry. Zero values are safe; defaults are
// applied in New:
//   - zero HarmonyThreshold  => 0.87
//   - zero ResonanceFreq     => 432
//   - zero MaxShards         => 1024
//   - zero OptimizeInterval  => 5s
//   - nil Scorer             => harmonic (default policy)
//   - nil Metrics            => NoopMetrics
//   - nil Clock              => time.Now
//   - nil Allocator          => internal 64-byte-aligned allocator
type Options struct {
	// HarmonyThreshold gates eviction and pre-shatter candidacy.
	HarmonyThreshold float64

	// ResonanceFreq is the oscillator base and the reference frequency
	// shard health evolves against. Must fall inside the oscillator's
	// accepted range; New fails otherwise.
	ResonanceFreq float64

	// MaxShards is the resident shard limit. CreateShard sweeps before
	// refusing with ErrCacheFull.
	MaxShards int

	// GrowthFactor is carried in the configuration for external
	// consumers; the core itself does not branch on it.
	GrowthFactor float64

	// DisableHarmonyOptimization skips the oscillator modulation pass
	// on shard creation (the zero value keeps it enabled).
	DisableHarmonyOptimization bool

	// OptimizeInterval is the minimum wall-clock spacing MaybeOptimize
	// enforces between sweeps.
	OptimizeInterval time.Duration

	// Tuning overrides the health-state evolution constants.
	// The zero value selects harmony.DefaultTuning().
	Tuning harmony.Tuning

	// Scorer shapes pre-shatter prediction scores; nil => harmonic.
	Scorer policy.Scorer

	// Observability. Metrics receives per-event signals; nil => noop.
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock

	// Allocator overrides the shard buffer allocator.
	Allocator Allocator
}

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }
