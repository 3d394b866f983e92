// Command bench runs a synthetic workload against the shard cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/harmonycache/cache"
	"github.com/IvanBrykalov/harmonycache/harmony"
	pmet "github.com/IvanBrykalov/harmonycache/metrics/prom"
	"github.com/IvanBrykalov/harmonycache/policy/flat"
)

// config mirrors the flag set; a YAML file supplies defaults and explicit
// flags override it.
type config struct {
	Shards    int     `yaml:"shards"`
	ShardSize int     `yaml:"shard_size"`
	Policy    string  `yaml:"policy"`
	Freq      float64 `yaml:"resonance_freq"`
	Threshold float64 `yaml:"harmony_threshold"`

	Workers  int           `yaml:"workers"`
	Duration time.Duration `yaml:"duration"`
	ReadPct  int           `yaml:"reads"`

	PredictEvery time.Duration `yaml:"predict_every"`
	ZipfS        float64       `yaml:"zipf_s"`
	ZipfV        float64       `yaml:"zipf_v"`
	Seed         int64         `yaml:"seed"`

	PprofAddr   string `yaml:"pprof"`
	MetricsAddr string `yaml:"http"`
}

func defaultConfig() config {
	return config{
		Shards:       512,
		ShardSize:    4096,
		Policy:       "harmonic",
		Workers:      2 * runtime.GOMAXPROCS(0),
		Duration:     10 * time.Second,
		ReadPct:      80,
		PredictEvery: 200 * time.Millisecond,
		ZipfS:        1.1,
		ZipfV:        1.0,
		Seed:         time.Now().UnixNano(),
		MetricsAddr:  ":8080",
	}
}

func main() {
	cfg := defaultConfig()
	var configPath string

	root := &cobra.Command{
		Use:           "bench",
		Short:         "Synthetic read/write/predict workload against the shard cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				return nil
			}
			raw, err := os.ReadFile(configPath)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			// File values win only where the flag was left untouched.
			if !cmd.Flags().Changed("shards") {
				cfg.Shards = fileCfg.Shards
			}
			if !cmd.Flags().Changed("shard-size") {
				cfg.ShardSize = fileCfg.ShardSize
			}
			if !cmd.Flags().Changed("policy") {
				cfg.Policy = fileCfg.Policy
			}
			if !cmd.Flags().Changed("freq") {
				cfg.Freq = fileCfg.Freq
			}
			if !cmd.Flags().Changed("threshold") {
				cfg.Threshold = fileCfg.Threshold
			}
			if !cmd.Flags().Changed("workers") {
				cfg.Workers = fileCfg.Workers
			}
			if !cmd.Flags().Changed("duration") {
				cfg.Duration = fileCfg.Duration
			}
			if !cmd.Flags().Changed("reads") {
				cfg.ReadPct = fileCfg.ReadPct
			}
			if !cmd.Flags().Changed("predict-every") {
				cfg.PredictEvery = fileCfg.PredictEvery
			}
			if !cmd.Flags().Changed("zipf-s") {
				cfg.ZipfS = fileCfg.ZipfS
			}
			if !cmd.Flags().Changed("zipf-v") {
				cfg.ZipfV = fileCfg.ZipfV
			}
			if !cmd.Flags().Changed("seed") {
				cfg.Seed = fileCfg.Seed
			}
			if !cmd.Flags().Changed("pprof") {
				cfg.PprofAddr = fileCfg.PprofAddr
			}
			if !cmd.Flags().Changed("http") {
				cfg.MetricsAddr = fileCfg.MetricsAddr
			}
			return nil
		},
		RunE: func(*cobra.Command, []string) error {
			return run(cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&configPath, "config", "", "optional YAML config file")
	f.IntVar(&cfg.Shards, "shards", cfg.Shards, "maximum resident shards")
	f.IntVar(&cfg.ShardSize, "shard-size", cfg.ShardSize, "shard buffer size (bytes)")
	f.StringVar(&cfg.Policy, "policy", cfg.Policy, "prediction scorer: harmonic | flat")
	f.Float64Var(&cfg.Freq, "freq", cfg.Freq, "resonance frequency (0 = default 432)")
	f.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "harmony threshold (0 = default 0.87)")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker goroutines")
	f.DurationVar(&cfg.Duration, "duration", cfg.Duration, "benchmark duration")
	f.IntVar(&cfg.ReadPct, "reads", cfg.ReadPct, "read percentage [0..100]")
	f.DurationVar(&cfg.PredictEvery, "predict-every", cfg.PredictEvery, "interval between pre-shatter predictions")
	f.Float64Var(&cfg.ZipfS, "zipf-s", cfg.ZipfS, "Zipf s > 1 (shard access skew)")
	f.Float64Var(&cfg.ZipfV, "zipf-v", cfg.ZipfV, "Zipf v")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&cfg.MetricsAddr, "http", cfg.MetricsAddr, "serve Prometheus metrics at addr; empty = disabled")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
}

func run(cfg config) error {
	if cfg.ShardSize < 128 {
		return fmt.Errorf("shard-size %d too small (minimum 128)", cfg.ShardSize)
	}
	if cfg.Shards < 2 {
		return fmt.Errorf("shards %d too small (minimum 2)", cfg.Shards)
	}
	if cfg.ZipfS <= 1 || cfg.ZipfV < 1 {
		return fmt.Errorf("zipf parameters out of range: s=%v (need >1), v=%v (need >=1)", cfg.ZipfS, cfg.ZipfV)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.PprofAddr != "" {
		go func() {
			logger.Info("pprof serving", zap.String("addr", cfg.PprofAddr))
			logger.Warn("pprof server stopped", zap.Error(http.ListenAndServe(cfg.PprofAddr, nil)))
		}()
	}

	metrics := pmet.New(nil, "harmonycache", "bench", nil)
	if cfg.MetricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics serving", zap.String("addr", cfg.MetricsAddr))
			logger.Warn("metrics server stopped", zap.Error(http.ListenAndServe(cfg.MetricsAddr, nil)))
		}()
	}

	opt := cache.Options{
		MaxShards:        cfg.Shards,
		ResonanceFreq:    cfg.Freq,
		HarmonyThreshold: cfg.Threshold,
		Metrics:          metrics,
	}
	switch cfg.Policy {
	case "harmonic", "":
		// nil => harmonic by default
	case "flat":
		opt.Scorer = flat.New()
	default:
		return fmt.Errorf("unknown policy %q (use harmonic or flat)", cfg.Policy)
	}

	reg, err := cache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	// Preload to half capacity so readers have something to hit.
	ids := make([]uint64, 0, cfg.Shards/2)
	for i := 0; i < cfg.Shards/2; i++ {
		s, err := reg.CreateShard(cfg.ShardSize)
		if err != nil {
			return fmt.Errorf("preload: %w", err)
		}
		ids = append(ids, s.ID())
	}
	logger.Info("preloaded",
		zap.Int("shards", len(ids)),
		zap.Int("shard_size", cfg.ShardSize),
		zap.Float64("health", reg.Health()))

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var reads, writes, harmonyErrs, total atomic.Uint64

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(cfg.Seed + int64(w)*9973))
			localZipf := rand.NewZipf(localR, cfg.ZipfS, cfg.ZipfV, uint64(len(ids)-1))
			buf := make([]byte, 64)

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				total.Add(1)
				s, err := reg.Get(ids[localZipf.Uint64()])
				if err != nil {
					continue // evicted by a sweep; keep hammering
				}
				off := localR.Intn(s.Size() - len(buf))
				if int(localR.Int31n(100)) < cfg.ReadPct {
					reads.Add(1)
					err = s.Read(off, buf)
				} else {
					writes.Add(1)
					err = s.Write(off, buf)
				}
				if err != nil && isHarmonySignal(err) {
					harmonyErrs.Add(1)
				}
			}
		})
	}

	// Predictor: cycle pre-shatter over the tunable patterns.
	g.Go(func() error {
		patterns := []cache.AccessPattern{cache.Sequential, cache.Strided, cache.Clustered}
		ticker := time.NewTicker(cfg.PredictEvery)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := reg.PreShatter(patterns[i%len(patterns)]); err != nil && !isHarmonySignal(err) {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := reg.Stats()
	accuracy := 0.0
	if st.Predictions > 0 {
		accuracy = float64(st.CorrectPredictions) / float64(st.Predictions) * 100
	}

	logger.Info("bench done",
		zap.Duration("elapsed", elapsed),
		zap.Uint64("ops", total.Load()),
		zap.Float64("ops_per_sec", float64(total.Load())/elapsed.Seconds()),
		zap.Uint64("reads", reads.Load()),
		zap.Uint64("writes", writes.Load()),
		zap.Uint64("harmony_errors", harmonyErrs.Load()))
	logger.Info("cache state",
		zap.Int("len", reg.Len()),
		zap.Float64("health", reg.Health()),
		zap.Uint64("hits", st.Hits),
		zap.Uint64("misses", st.Misses),
		zap.Uint64("evictions", st.Evictions),
		zap.Uint64("predictions", st.Predictions),
		zap.Uint64("correct_predictions", st.CorrectPredictions),
		zap.Float64("prediction_accuracy_pct", accuracy),
		zap.Uint64("disruptions", st.HarmonyDisruptions),
		zap.Uint64("pattern_optimizations", st.PatternOptimizations))
	return nil
}

// isHarmonySignal reports whether err is a health signal rather than an
// operational failure.
func isHarmonySignal(err error) bool {
	return errors.Is(err, harmony.ErrHarmonyLost) ||
		errors.Is(err, harmony.ErrResonanceMismatch) ||
		errors.Is(err, cache.ErrHarmonyDisruption)
}
