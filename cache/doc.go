// Package cache implements a predictive shard cache. Each entry ("shard")
// owns a 64-byte-aligned buffer plus a decaying health score; a shared
// oscillator bank modulates that score, and the registry uses it to decide
// admission, speculative pre-tuning, and eviction.
//
// Design
//
//   - Health: every shard embeds a harmony.State — a quality level that
//     decays exponentially between accesses and is modulated against the
//     configured resonance frequency. The scalar health metric gates both
//     eviction and prediction.
//
//   - Oscillator: one oscillator.Bank per registry produces a bounded
//     multiplicative modulation factor from a short harmonic series. New
//     shards are passed through it on admission (harmony optimization).
//
//   - Pre-shattering: PreShatter(pattern) speculatively re-tunes shards
//     whose prediction score — shaped by the pluggable policy.Scorer —
//     clears the optimization bar, so entries likely to serve the
//     predicted access pattern are resonance-aligned ahead of traffic.
//
//   - Eviction: shards below the harmony threshold are swap-removed from
//     the list and erased from the id index. The sweep runs on demand
//     (EvictShards), on admission pressure, and from the periodic
//     optimization pass.
//
//   - Concurrency: one RWMutex guards the shard list and index
//     (exclusive for structural mutation, shared for traversal); per-shard
//     counters are padded atomics and per-shard health has a local mutex.
//     The payload buffer is intentionally unsynchronized — callers
//     serialize access to a single shard's bytes.
//
// Basic usage
//
//	r, err := cache.New(cache.Options{})
//	if err != nil { ... }
//	defer func() { _ = r.Close() }()
//
//	s, err := r.CreateShard(4096)
//	if err != nil { ... }
//	_ = s.Write(0, []byte("payload"))
//
//	buf := make([]byte, 7)
//	_ = s.Read(0, buf)
//
//	// Speculative pre-tuning against a predicted pattern.
//	_ = r.PreShatter(cache.Clustered)
//
// Observability
//
//	m := prom.New(nil, "harmonycache", "demo", nil) // implements Metrics
//	r, err := cache.New(cache.Options{Metrics: m})
//
// Stats() returns a counter snapshot (hits, misses, evictions,
// predictions, correct predictions, harmony disruptions, pattern
// optimizations); Health() returns the aggregate shard health.
package cache
