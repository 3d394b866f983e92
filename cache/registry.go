package cache

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/harmonycache/harmony"
	"github.com/IvanBrykalov/harmonycache/internal/flight"
	"github.com/IvanBrykalov/harmonycache/internal/mem"
	"github.com/IvanBrykalov/harmonycache/internal/util"
	"github.com/IvanBrykalov/harmonycache/oscillator"
	"github.com/IvanBrykalov/harmonycache/policy"
	"github.com/IvanBrykalov/harmonycache/policy/harmonic"
)

// scoreBar is the prediction score a shard must exceed during PreShatter
// to be speculatively re-tuned.
const scoreBar = 0.8

// Registry owns the set of shards, one shared oscillator bank, and a
// registry-level health state. All methods are safe for concurrent use.
//
// Locking: mu guards the shard list and id index — structural mutation
// (CreateShard, EvictShards, sweeps) takes it exclusively, traversal
// (PreShatter, Health, Get) takes it shared. Per-shard state has its own
// shard-local protection; see Shard.
type Registry struct {
	opt Options

	mu     sync.RWMutex
	shards []*Shard
	index  map[uint64]*Shard

	// oscMu guards bank phase state; the base frequency is immutable.
	oscMu sync.Mutex
	osc   *oscillator.Bank

	// healthMu guards the registry-level health state.
	healthMu sync.Mutex
	health   *harmony.State

	lastOptimization atomic.Int64
	sweeps           flight.Group
	closed           atomic.Bool

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_                    util.CacheLinePad
	hits                 util.PaddedAtomicUint64
	misses               util.PaddedAtomicUint64
	evictions            util.PaddedAtomicUint64
	predictions          util.PaddedAtomicUint64
	correctPredictions   util.PaddedAtomicUint64
	harmonyDisruptions   util.PaddedAtomicUint64
	patternOptimizations util.PaddedAtomicUint64
}

// New constructs a Registry with the provided Options. Zero fields get
// defaults (see Options). Fails with oscillator.ErrFrequencyOutOfRange if
// the configured resonance frequency cannot seed the bank.
func New(opt Options) (*Registry, error) {
	if opt.HarmonyThreshold == 0 {
		opt.HarmonyThreshold = DefaultHarmonyThreshold
	}
	if opt.ResonanceFreq == 0 {
		opt.ResonanceFreq = DefaultResonanceFreq
	}
	if opt.MaxShards <= 0 {
		opt.MaxShards = DefaultMaxShards
	}
	if opt.GrowthFactor == 0 {
		opt.GrowthFactor = DefaultGrowthFactor
	}
	if opt.OptimizeInterval <= 0 {
		opt.OptimizeInterval = DefaultOptimizeInterval
	}
	if opt.Tuning == (harmony.Tuning{}) {
		opt.Tuning = harmony.DefaultTuning()
	}
	if opt.Scorer == nil {
		opt.Scorer = harmonic.New()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Clock == nil {
		opt.Clock = systemClock{}
	}
	if opt.Allocator == nil {
		opt.Allocator = mem.Aligned{}
	}

	now := opt.Clock.NowUnixNano()
	osc, err := oscillator.New(opt.ResonanceFreq, now)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		opt:    opt,
		index:  make(map[uint64]*Shard),
		osc:    osc,
		health: harmony.NewStateTuned(opt.ResonanceFreq, opt.Tuning, now),
	}
	r.lastOptimization.Store(now)
	return r, nil
}

// CreateShard allocates, tunes, and registers a new shard of the given
// size with the default Sequential access pattern.
func (r *Registry) CreateShard(size int) (*Shard, error) {
	return r.CreateShardWithPattern(size, Sequential)
}

// CreateShardWithPattern is CreateShard with an explicit initial access
// pattern (the classifier may already know how the buffer will be used).
// At MaxShards it first sweeps unhealthy shards and fails with
// ErrCacheFull if the sweep freed nothing. With harmony optimization
// enabled (the default) the fresh shard is modulated through the
// oscillator bank before registration; modulation errors propagate and
// leave the registry unchanged.
func (r *Registry) CreateShardWithPattern(size int, p AccessPattern) (*Shard, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.shards) >= r.opt.MaxShards {
		r.evictLocked()
		if len(r.shards) >= r.opt.MaxShards {
			return nil, ErrCacheFull
		}
	}

	now := r.opt.Clock.NowUnixNano()
	s, err := newShard(r.newIDLocked(), size, p, &r.opt, now)
	if err != nil {
		return nil, err
	}

	if !r.opt.DisableHarmonyOptimization {
		r.oscMu.Lock()
		mod := r.osc.Apply(s.Health(), now)
		r.oscMu.Unlock()
		if err := s.applyTarget(r.opt.ResonanceFreq*mod, now); err != nil {
			return nil, err
		}
	}

	r.shards = append(r.shards, s)
	r.index[s.id] = s
	r.opt.Metrics.Size(len(r.shards))
	return s, nil
}

// newIDLocked draws a random id not already in the index.
func (r *Registry) newIDLocked() uint64 {
	for {
		id := rand.Uint64()
		if _, taken := r.index[id]; !taken {
			return id
		}
	}
}

// Get looks a shard up by id. Misses count toward stats and fail with
// ErrInvalidShard.
func (r *Registry) Get(id uint64) (*Shard, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	r.mu.RLock()
	s, ok := r.index[id]
	r.mu.RUnlock()

	if !ok {
		r.misses.Add(1)
		r.opt.Metrics.Miss()
		return nil, fmt.Errorf("%w: id %d", ErrInvalidShard, id)
	}
	r.hits.Add(1)
	r.opt.Metrics.Hit()
	return s, nil
}

// PreShatter speculatively re-tunes shards likely to serve the predicted
// access pattern. It evolves the registry health against the bank base
// frequency, scores every healthy shard through the configured policy, and
// optimizes those whose score clears the bar. Exactly one prediction is
// counted per call. Finishes with a time-gated optimization pass.
func (r *Registry) PreShatter(predicted AccessPattern) error {
	if r.closed.Load() {
		return ErrClosed
	}

	now := r.opt.Clock.NowUnixNano()
	r.predictions.Add(1)
	r.opt.Metrics.Prediction()

	r.healthMu.Lock()
	evolveErr := r.health.Evolve(r.osc.BaseFrequency(), now)
	temporal := r.health.Orientation().Temporal()
	r.healthMu.Unlock()
	if evolveErr != nil {
		return evolveErr
	}

	r.mu.RLock()
	for _, s := range r.shards {
		m := s.Health()
		if m < r.opt.HarmonyThreshold {
			continue
		}
		score := r.opt.Scorer.Score(policyInput(m, temporal, s, predicted))
		if score <= scoreBar {
			continue
		}
		if err := r.optimizeShard(s, predicted, now); err != nil {
			r.mu.RUnlock()
			return err
		}
		r.correctPredictions.Add(1)
		r.opt.Metrics.CorrectPrediction()
	}
	r.mu.RUnlock()

	return r.MaybeOptimize()
}

// OptimizeShard explicitly re-tunes one shard toward a pattern. Unknown
// ids fail with ErrInvalidShard; a rejected re-tune fails with
// ErrPatternMismatch wrapping the underlying resonance error.
func (r *Registry) OptimizeShard(id uint64, p AccessPattern) error {
	if r.closed.Load() {
		return ErrClosed
	}

	r.mu.RLock()
	s, ok := r.index[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: id %d", ErrInvalidShard, id)
	}

	now := r.opt.Clock.NowUnixNano()
	if err := r.optimizeShard(s, p, now); err != nil {
		return fmt.Errorf("%w: %w", ErrPatternMismatch, err)
	}
	return nil
}

// optimizeShard re-tunes s toward p and counts the optimization.
func (r *Registry) optimizeShard(s *Shard, p AccessPattern, now int64) error {
	if err := s.retune(p, now); err != nil {
		return err
	}
	r.patternOptimizations.Add(1)
	r.opt.Metrics.PatternOptimization()
	return nil
}

// MaybeOptimize runs Optimize if at least OptimizeInterval elapsed since
// the previous sweep; otherwise it is a no-op.
func (r *Registry) MaybeOptimize() error {
	now := r.opt.Clock.NowUnixNano()
	if now-r.lastOptimization.Load() < int64(r.opt.OptimizeInterval) {
		return nil
	}
	_, err := r.Optimize()
	return err
}

// Optimize recomputes aggregate health and acts on it: below the harmony
// threshold it counts a disruption, sweeps unhealthy shards, and returns
// ErrHarmonyDisruption; otherwise it refreshes every shard's resonance.
// Concurrent callers coalesce onto a single sweep and share its result.
// The returned value is the aggregate health at the start of the sweep.
func (r *Registry) Optimize() (float64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	return r.sweeps.Do(func() (float64, error) {
		now := r.opt.Clock.NowUnixNano()
		r.lastOptimization.Store(now)

		r.mu.Lock()
		defer r.mu.Unlock()

		g := r.healthLocked()
		r.opt.Metrics.Health(g)

		if g < r.opt.HarmonyThreshold {
			r.harmonyDisruptions.Add(1)
			r.opt.Metrics.Disruption()
			r.evictLocked()
			return g, ErrHarmonyDisruption
		}

		for _, s := range r.shards {
			if err := s.retune(s.Pattern(), now); err != nil {
				return g, err
			}
		}
		return g, nil
	})
}

// EvictShards removes every shard whose health metric is below the harmony
// threshold and returns the number evicted.
func (r *Registry) EvictShards() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

// evictLocked swap-removes unhealthy shards from the list and erases them
// from the id index. Caller holds mu exclusively.
func (r *Registry) evictLocked() int {
	evicted := 0
	for i := 0; i < len(r.shards); {
		s := r.shards[i]
		if s.Health() >= r.opt.HarmonyThreshold {
			i++
			continue
		}
		delete(r.index, s.id)
		last := len(r.shards) - 1
		r.shards[i] = r.shards[last]
		r.shards[last] = nil
		r.shards = r.shards[:last]
		evicted++
		r.evictions.Add(1)
		r.opt.Metrics.Evict()
	}
	if evicted > 0 {
		r.opt.Metrics.Size(len(r.shards))
	}
	return evicted
}

// Health returns the mean shard health metric, or 1.0 for an empty cache.
func (r *Registry) Health() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthLocked()
}

// healthLocked computes the aggregate under either lock mode.
func (r *Registry) healthLocked() float64 {
	if len(r.shards) == 0 {
		return 1.0
	}
	var sum float64
	for _, s := range r.shards {
		sum += s.Health()
	}
	return sum / float64(len(r.shards))
}

// Len returns the number of resident shards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shards)
}

// Stats returns a snapshot of all counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Hits:                 r.hits.Load(),
		Misses:               r.misses.Load(),
		Evictions:            r.evictions.Load(),
		Predictions:          r.predictions.Load(),
		CorrectPredictions:   r.correctPredictions.Load(),
		HarmonyDisruptions:   r.harmonyDisruptions.Load(),
		PatternOptimizations: r.patternOptimizations.Load(),
	}
}

// Close tears down the registry: all shards are released and future
// operations fail with ErrClosed. The final registry-health evolution is
// best-effort; its error is deliberately discarded.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.healthMu.Lock()
	_ = r.health.Evolve(r.osc.BaseFrequency(), r.opt.Clock.NowUnixNano())
	r.healthMu.Unlock()

	r.mu.Lock()
	r.shards = nil
	r.index = make(map[uint64]*Shard)
	r.mu.Unlock()
	r.opt.Metrics.Size(0)
	return nil
}

// policyInput assembles the scorer inputs for one shard.
func policyInput(metric, temporal float64, s *Shard, predicted AccessPattern) policy.Input {
	return policy.Input{
		Metric:       metric,
		Temporal:     temporal,
		Resonance:    s.Resonance(),
		PatternMatch: s.Pattern() == predicted,
	}
}
