package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/IvanBrykalov/harmonycache/harmony"
	"github.com/IvanBrykalov/harmonycache/oscillator"
	"github.com/IvanBrykalov/harmonycache/policy"
)

// fakeClock is a manually advanced Clock for deterministic decay math.
type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func newTestRegistry(t *testing.T, opt Options) *Registry {
	t.Helper()
	r, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// failAlloc always refuses.
type failAlloc struct{}

func (failAlloc) Alloc(int) ([]byte, error) { return nil, errors.New("mmap refused") }

// fixedScorer returns the same score for every shard.
type fixedScorer struct{ v float64 }

func (s fixedScorer) Score(policy.Input) float64 { return s.v }

func TestNew_RejectsBadFrequency(t *testing.T) {
	t.Parallel()

	_, err := New(Options{ResonanceFreq: 5})
	if !errors.Is(err, oscillator.ErrFrequencyOutOfRange) {
		t.Fatalf("want ErrFrequencyOutOfRange, got %v", err)
	}
}

func TestRegistry_GetHitMiss(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	got, err := r.Get(s.ID())
	if err != nil {
		t.Fatalf("Get(%d): %v", s.ID(), err)
	}
	if got != s {
		t.Fatal("Get returned a different shard")
	}

	if _, err := r.Get(s.ID() + 1); !errors.Is(err, ErrInvalidShard) {
		t.Fatalf("unknown id: want ErrInvalidShard, got %v", err)
	}

	st := r.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("hits/misses = %d/%d, want 1/1", st.Hits, st.Misses)
	}
}

func TestRegistry_AllocationFailure(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, Options{Clock: &fakeClock{}, Allocator: failAlloc{}})

	if _, err := r.CreateShard(64); !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("want ErrAllocationFailed, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("failed create registered a shard: Len = %d", r.Len())
	}
}

// At MaxShards with only healthy shards the sweep frees nothing and
// admission fails.
func TestRegistry_CacheFull(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk, MaxShards: 2})

	for i := 0; i < 2; i++ {
		if _, err := r.CreateShard(64); err != nil {
			t.Fatalf("CreateShard #%d: %v", i, err)
		}
	}
	if _, err := r.CreateShard(64); !errors.Is(err, ErrCacheFull) {
		t.Fatalf("want ErrCacheFull, got %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

// Admission pressure sweeps decayed shards to make room.
func TestRegistry_EvictOnFull(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk, MaxShards: 1})

	old, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	// A 60s gap decays the stored metric to ~0.11, far below the
	// 0.87 threshold, without tripping the viability floor.
	clk.add(60 * time.Second)
	if err := old.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write after decay: %v", err)
	}
	if old.Health() >= DefaultHarmonyThreshold {
		t.Fatalf("decayed health = %v, want < %v", old.Health(), DefaultHarmonyThreshold)
	}

	fresh, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard under pressure: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if _, err := r.Get(old.ID()); !errors.Is(err, ErrInvalidShard) {
		t.Fatalf("evicted shard still resolvable: %v", err)
	}
	if _, err := r.Get(fresh.ID()); err != nil {
		t.Fatalf("fresh shard not resolvable: %v", err)
	}
	if st := r.Stats(); st.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", st.Evictions)
	}
}

// EvictShards removes exactly the shards below threshold and leaves the
// index consistent with the list.
func TestRegistry_EvictShards(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	keep1, _ := r.CreateShard(64)
	victim, _ := r.CreateShard(64)
	keep2, _ := r.CreateShard(64)

	clk.add(60 * time.Second)
	if err := victim.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if n := r.EvictShards(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	for _, s := range []*Shard{keep1, keep2} {
		if _, err := r.Get(s.ID()); err != nil {
			t.Fatalf("survivor %d lost: %v", s.ID(), err)
		}
	}
	if _, err := r.Get(victim.ID()); !errors.Is(err, ErrInvalidShard) {
		t.Fatalf("victim still resolvable: %v", err)
	}

	// Idempotent when everything left is healthy.
	if n := r.EvictShards(); n != 0 {
		t.Fatalf("second sweep evicted %d, want 0", n)
	}
}

func TestRegistry_HealthAggregate(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	if got := r.Health(); got != 1.0 {
		t.Fatalf("empty cache health = %v, want 1.0", got)
	}

	s1, _ := r.CreateShard(64)
	s2, _ := r.CreateShard(64)
	want := (s1.Health() + s2.Health()) / 2
	if got := r.Health(); got != want {
		t.Fatalf("aggregate = %v, want %v", got, want)
	}
}

// Every PreShatter call counts exactly one prediction, shard or no shard.
func TestRegistry_PreShatterCountsPrediction(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	if err := r.PreShatter(Sequential); err != nil {
		t.Fatalf("PreShatter on empty cache: %v", err)
	}
	if st := r.Stats(); st.Predictions != 1 || st.CorrectPredictions != 0 {
		t.Fatalf("predictions/correct = %d/%d, want 1/0", st.Predictions, st.CorrectPredictions)
	}
}

// A healthy shard scoring above the bar is speculatively re-tuned toward
// the predicted pattern.
func TestRegistry_PreShatterOptimizes(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	if err := r.PreShatter(Clustered); err != nil {
		t.Fatalf("PreShatter: %v", err)
	}
	if s.Pattern() != Clustered {
		t.Fatalf("pattern = %v, want clustered", s.Pattern())
	}
	if got, want := s.Resonance(), Clustered.Coefficient(); got != want {
		t.Fatalf("resonance = %v, want %v", got, want)
	}
	st := r.Stats()
	if st.Predictions != 1 || st.CorrectPredictions != 1 || st.PatternOptimizations != 1 {
		t.Fatalf("stats = %+v, want 1 prediction, 1 correct, 1 optimization", st)
	}
}

// A scorer below the bar leaves every shard untouched.
func TestRegistry_PreShatterScorerBelowBar(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk, Scorer: fixedScorer{v: 0.5}})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	if err := r.PreShatter(Clustered); err != nil {
		t.Fatalf("PreShatter: %v", err)
	}
	if s.Pattern() != Sequential {
		t.Fatalf("pattern changed to %v despite low score", s.Pattern())
	}
	st := r.Stats()
	if st.CorrectPredictions != 0 || st.PatternOptimizations != 0 {
		t.Fatalf("stats = %+v, want no optimizations", st)
	}
}

// A decayed registry-level health state fails the prediction pass while
// still counting the prediction attempt.
func TestRegistry_PreShatterHealthLost(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	clk.add(120 * time.Second)
	if err := r.PreShatter(Sequential); !errors.Is(err, harmony.ErrHarmonyLost) {
		t.Fatalf("want ErrHarmonyLost, got %v", err)
	}
	if st := r.Stats(); st.Predictions != 1 {
		t.Fatalf("predictions = %d, want 1", st.Predictions)
	}
}

func TestRegistry_OptimizeShard(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	if err := r.OptimizeShard(s.ID(), Strided); err != nil {
		t.Fatalf("OptimizeShard(strided): %v", err)
	}
	if s.Pattern() != Strided {
		t.Fatalf("pattern = %v, want strided", s.Pattern())
	}

	if err := r.OptimizeShard(s.ID()+1, Strided); !errors.Is(err, ErrInvalidShard) {
		t.Fatalf("unknown id: want ErrInvalidShard, got %v", err)
	}

	// Random's coefficient always exceeds the allowed drift.
	fresh, _ := r.CreateShard(64)
	err = r.OptimizeShard(fresh.ID(), Random)
	if !errors.Is(err, ErrPatternMismatch) {
		t.Fatalf("want ErrPatternMismatch, got %v", err)
	}
	if !errors.Is(err, harmony.ErrResonanceMismatch) {
		t.Fatalf("mismatch does not wrap the resonance error: %v", err)
	}
	if fresh.Pattern() != Sequential {
		t.Fatalf("rejected re-tune committed the pattern: %v", fresh.Pattern())
	}
}

// Below-threshold aggregate health makes Optimize report a disruption and
// sweep the cache.
func TestRegistry_OptimizeDisruption(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	clk.add(60 * time.Second)
	if err := s.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	g, err := r.Optimize()
	if !errors.Is(err, ErrHarmonyDisruption) {
		t.Fatalf("want ErrHarmonyDisruption, got %v", err)
	}
	if g >= DefaultHarmonyThreshold {
		t.Fatalf("reported aggregate %v, want < %v", g, DefaultHarmonyThreshold)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after disruption sweep, want 0", r.Len())
	}
	st := r.Stats()
	if st.HarmonyDisruptions != 1 || st.Evictions != 1 {
		t.Fatalf("stats = %+v, want 1 disruption, 1 eviction", st)
	}
}

// MaybeOptimize is a no-op inside the interval and sweeps once it elapses.
func TestRegistry_MaybeOptimizeGate(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	stale, _ := r.CreateShard(64)
	clk.add(60 * time.Second)
	if err := stale.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Explicit sweep at t=60 clears the stale shard and arms the gate.
	if _, err := r.Optimize(); !errors.Is(err, ErrHarmonyDisruption) {
		t.Fatalf("priming Optimize: %v", err)
	}

	// A 4s-old shard sits just below the threshold (~0.865), so the next
	// sweep will disrupt again; the gate decides when that happens.
	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	clk.add(4 * time.Second)
	if err := s.Write(0, []byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := r.MaybeOptimize(); err != nil {
		t.Fatalf("gated MaybeOptimize: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("gated sweep ran early: Len = %d", r.Len())
	}

	clk.add(2 * time.Second)
	if err := r.MaybeOptimize(); !errors.Is(err, ErrHarmonyDisruption) {
		t.Fatalf("want ErrHarmonyDisruption after interval, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after sweep, want 0", r.Len())
	}
}

// Healthy caches get a resonance refresh instead of a sweep.
func TestRegistry_OptimizeHealthy(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}

	g, err := r.Optimize()
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if g < DefaultHarmonyThreshold {
		t.Fatalf("aggregate = %v, want >= %v", g, DefaultHarmonyThreshold)
	}
	if r.Len() != 1 {
		t.Fatalf("healthy shard swept: Len = %d", r.Len())
	}
	if s.Pattern() != Sequential {
		t.Fatalf("refresh changed the pattern: %v", s.Pattern())
	}
}

func TestRegistry_DisableHarmonyOptimization(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk, DisableHarmonyOptimization: true})

	s, err := r.CreateShard(64)
	if err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	if got := s.Health(); got != 1.0 {
		t.Fatalf("unmodulated fresh health = %v, want exactly 1.0", got)
	}
}

func TestRegistry_Close(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	r := newTestRegistry(t, Options{Clock: clk})

	if _, err := r.CreateShard(64); err != nil {
		t.Fatalf("CreateShard: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Close, want 0", r.Len())
	}

	if _, err := r.CreateShard(64); !errors.Is(err, ErrClosed) {
		t.Fatalf("CreateShard after Close: %v", err)
	}
	if _, err := r.Get(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after Close: %v", err)
	}
	if err := r.PreShatter(Sequential); !errors.Is(err, ErrClosed) {
		t.Fatalf("PreShatter after Close: %v", err)
	}
	if _, err := r.Optimize(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Optimize after Close: %v", err)
	}
}
