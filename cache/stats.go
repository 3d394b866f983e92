package cache

// Stats is a point-in-time snapshot of the registry counters.
// Counters are maintained as padded atomics on the hot paths; the snapshot
// is not transactional across fields (each field is individually exact).
type Stats struct {
	// Hits/Misses count id lookups through Get.
	Hits   uint64
	Misses uint64

	// Evictions counts shards removed by sweeps (one per shard).
	Evictions uint64

	// Predictions counts PreShatter calls; CorrectPredictions counts
	// shards whose prediction score cleared the optimization bar.
	Predictions        uint64
	CorrectPredictions uint64

	// HarmonyDisruptions counts sweeps triggered by aggregate health
	// falling below the harmony threshold.
	HarmonyDisruptions uint64

	// PatternOptimizations counts successful per-shard re-tunes.
	PatternOptimizations uint64
}
