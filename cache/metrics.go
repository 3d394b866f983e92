package cache

// Metrics exposes registry-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict()
	Prediction()
	CorrectPrediction()
	Disruption()
	PatternOptimization()
	Health(h float64)
	Size(shards int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                 {}
func (NoopMetrics) Miss()                {}
func (NoopMetrics) Evict()               {}
func (NoopMetrics) Prediction()          {}
func (NoopMetrics) CorrectPrediction()   {}
func (NoopMetrics) Disruption()          {}
func (NoopMetrics) PatternOptimization() {}
func (NoopMetrics) Health(float64)       {}
func (NoopMetrics) Size(int)             {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
