package cache

import "errors"

// Registry- and shard-level error values. Lower-level families
// (harmony.ErrHarmonyLost, harmony.ErrResonanceMismatch,
// oscillator.ErrResonanceLost, …) bubble through Read/Write and registry
// calls unmodified; match them with errors.Is against their home package.
var (
	// ErrOutOfBounds is returned by Shard.Read/Write when
	// offset+len exceeds the buffer size. The call mutates nothing.
	ErrOutOfBounds = errors.New("cache: access out of bounds")

	// ErrAllocationFailed wraps allocator failures during CreateShard.
	ErrAllocationFailed = errors.New("cache: shard allocation failed")

	// ErrCacheFull is returned by CreateShard when the registry is at
	// MaxShards and eviction freed nothing.
	ErrCacheFull = errors.New("cache: registry full")

	// ErrInvalidShard is returned for lookups of unknown shard ids.
	ErrInvalidShard = errors.New("cache: no such shard")

	// ErrPatternMismatch wraps a resonance failure during an explicit
	// per-shard pattern optimization.
	ErrPatternMismatch = errors.New("cache: pattern optimization rejected")

	// ErrHarmonyDisruption is returned by Optimize after aggregate
	// health fell below the harmony threshold and an eviction sweep ran.
	ErrHarmonyDisruption = errors.New("cache: aggregate harmony disrupted")

	// ErrClosed is returned for operations on a closed registry.
	ErrClosed = errors.New("cache: registry closed")
)
