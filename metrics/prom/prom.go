// Package prom adapts cache metrics to Prometheus.
package prom

import (
	"github.com/IvanBrykalov/harmonycache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	evicts      prometheus.Counter
	predictions prometheus.Counter
	correct     prometheus.Counter
	disruptions prometheus.Counter
	patternOpts prometheus.Counter
	health      prometheus.Gauge
	size        prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:        counter("hits_total", "Shard lookups that resolved"),
		misses:      counter("misses_total", "Shard lookups that missed"),
		evicts:      counter("evictions_total", "Shards evicted below the harmony threshold"),
		predictions: counter("predictions_total", "Pre-shatter prediction passes"),
		correct:     counter("correct_predictions_total", "Predictions that re-tuned at least one shard"),
		disruptions: counter("harmony_disruptions_total", "Optimization sweeps that found aggregate health below threshold"),
		patternOpts: counter("pattern_optimizations_total", "Shard pattern re-tunes"),
		health:      gauge("health", "Aggregate shard health at the last optimization sweep"),
		size:        gauge("size_shards", "Number of resident shards"),
	}
	reg.MustRegister(
		a.hits, a.misses, a.evicts,
		a.predictions, a.correct,
		a.disruptions, a.patternOpts,
		a.health, a.size,
	)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter.
func (a *Adapter) Evict() { a.evicts.Inc() }

// Prediction increments the pre-shatter pass counter.
func (a *Adapter) Prediction() { a.predictions.Inc() }

// CorrectPrediction increments the successful-prediction counter.
func (a *Adapter) CorrectPrediction() { a.correct.Inc() }

// Disruption increments the harmony-disruption counter.
func (a *Adapter) Disruption() { a.disruptions.Inc() }

// PatternOptimization increments the re-tune counter.
func (a *Adapter) PatternOptimization() { a.patternOpts.Inc() }

// Health records the aggregate health observed by a sweep.
func (a *Adapter) Health(v float64) { a.health.Set(v) }

// Size updates the resident shard gauge.
func (a *Adapter) Size(n int) { a.size.Set(float64(n)) }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
