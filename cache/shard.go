package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/IvanBrykalov/harmonycache/harmony"
	"github.com/IvanBrykalov/harmonycache/internal/util"
)

// Shard is one cache entry: an aligned byte buffer plus its own health
// state and access metadata. Shards are created and owned by a Registry.
//
// Concurrency: access counters and the last-access timestamp are atomics,
// and the health/resonance state is guarded by a shard-local mutex, so
// Read/Write and registry scans may run concurrently. The byte buffer
// itself is NOT protected — callers that share one shard must serialize
// payload access externally.
type Shard struct {
	id        uint64
	buf       []byte
	createdAt int64

	// refFreq is the registry reference frequency; immutable after init.
	refFreq float64
	clock   Clock

	// ---- guarded by mu ----
	mu           sync.Mutex
	health       *harmony.State
	resonance    float64
	pattern      AccessPattern
	lastInterval int64 // ns between the two most recent accesses

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_           util.CacheLinePad
	accessCount util.PaddedAtomicUint64
	lastAccess  util.PaddedAtomicInt64
}

// newShard allocates the buffer and installs a fresh health state.
// Allocator failures are wrapped in ErrAllocationFailed.
func newShard(id uint64, size int, p AccessPattern, opt *Options, now int64) (*Shard, error) {
	buf, err := opt.Allocator.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("%w: size %d: %v", ErrAllocationFailed, size, err)
	}

	s := &Shard{
		id:        id,
		buf:       buf,
		createdAt: now,
		refFreq:   opt.ResonanceFreq,
		clock:     opt.Clock,
		health:    harmony.NewStateTuned(opt.ResonanceFreq, opt.Tuning, now),
		resonance: 1.0,
		pattern:   p,
	}
	s.lastAccess.Store(now)
	return s, nil
}

// Read copies len(dst) bytes starting at offset into dst, then updates the
// shard's access bookkeeping and health. The copy completes even when the
// health update fails; a returned harmony error is a health signal, not a
// data error.
func (s *Shard) Read(offset int, dst []byte) error {
	// offset > len-len(dst) rather than offset+len(dst) > len: the sum
	// overflows for offsets near MaxInt and would slip past the check.
	if offset < 0 || offset > len(s.buf)-len(dst) {
		return ErrOutOfBounds
	}
	copy(dst, s.buf[offset:])
	return s.recordAccess()
}

// Write copies src into the buffer at offset, then updates the shard's
// access bookkeeping and health. Same error semantics as Read.
func (s *Shard) Write(offset int, src []byte) error {
	if offset < 0 || offset > len(s.buf)-len(src) {
		return ErrOutOfBounds
	}
	copy(s.buf[offset:], src)
	return s.recordAccess()
}

// recordAccess bumps the counters and runs the harmony update.
func (s *Shard) recordAccess() error {
	now := s.clock.NowUnixNano()
	prev := s.lastAccess.Swap(now)
	s.accessCount.Add(1)
	return s.updateHarmony(now, prev)
}

// updateHarmony evolves the health state against the reference frequency,
// records the inter-access interval, and folds the per-pattern coefficient
// into the resonance factor. The new resonance is committed only when the
// re-application succeeds.
func (s *Shard) updateHarmony(now, prev int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.health.Evolve(s.refFreq, now); err != nil {
		return err
	}
	s.lastInterval = now - prev

	newRes := s.pattern.Coefficient() * s.resonance
	if err := s.health.ApplyResonance(s.refFreq*newRes, now); err != nil {
		return err
	}
	s.resonance = newRes
	return nil
}

// retune re-applies a pattern-specific resonance coefficient and, on
// success, adopts the pattern. Used by the registry for pre-shatter
// optimization and periodic resonance refresh.
func (s *Shard) retune(p AccessPattern, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newRes := p.Coefficient() * s.resonance
	if err := s.health.ApplyResonance(s.refFreq*newRes, now); err != nil {
		return err
	}
	s.resonance = newRes
	s.pattern = p
	return nil
}

// applyTarget re-targets the health state to an absolute frequency.
// Used by the registry's creation-time oscillator modulation.
func (s *Shard) applyTarget(freq float64, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health.ApplyResonance(freq, now)
}

// ---- read-only accessors ----

// ID returns the shard's random identifier.
func (s *Shard) ID() uint64 { return s.id }

// Size returns the buffer size in bytes.
func (s *Shard) Size() int { return len(s.buf) }

// Health returns the current health metric.
func (s *Shard) Health() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health.Metric()
}

// IsStable reports whether the health state is above all stability floors.
func (s *Shard) IsStable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health.IsStable()
}

// PatternStrength returns level^φ as of the last evolution.
func (s *Shard) PatternStrength() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health.PatternStrength()
}

// Resonance returns the accumulated resonance factor.
func (s *Shard) Resonance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resonance
}

// Pattern returns the shard's current access pattern.
func (s *Shard) Pattern() AccessPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// LastInterval returns the time between the two most recent accesses
// (zero before the second access).
func (s *Shard) LastInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.lastInterval)
}

// AccessCount returns the number of completed Read/Write calls.
func (s *Shard) AccessCount() uint64 { return s.accessCount.Load() }

// Age returns the time since the shard was created.
func (s *Shard) Age() time.Duration {
	return time.Duration(s.clock.NowUnixNano() - s.createdAt)
}
