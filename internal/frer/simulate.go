package frer

import (
	"math/rand"
	"time"
)

// SimConfig parameterizes the dual-path latency generator. The defaults
// model a primary path that is slightly faster on average but noisier
// than the secondary, which is where first-copy selection pays off.
type SimConfig struct {
	Samples int
	// Seed makes the run reproducible; 0 seeds from the clock.
	Seed int64

	Path1MeanMS   float64
	Path1StdDevMS float64
	Path2MeanMS   float64
	Path2StdDevMS float64
	// FloorMS clamps samples from below; physical latency has a
	// propagation minimum a Gaussian does not.
	FloorMS float64
}

// DefaultSimConfig returns the standard simulation parameters.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Samples:       1000,
		Path1MeanMS:   0.40,
		Path1StdDevMS: 0.15,
		Path2MeanMS:   0.45,
		Path2StdDevMS: 0.12,
		FloorMS:       0.15,
	}
}

// Simulate draws paired latency samples for two independent paths.
func Simulate(cfg SimConfig) (path1, path2 []float64) {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSimConfig().Samples
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	path1 = make([]float64, cfg.Samples)
	path2 = make([]float64, cfg.Samples)
	for i := 0; i < cfg.Samples; i++ {
		path1[i] = clampedGauss(rng, cfg.Path1MeanMS, cfg.Path1StdDevMS, cfg.FloorMS)
		path2[i] = clampedGauss(rng, cfg.Path2MeanMS, cfg.Path2StdDevMS, cfg.FloorMS)
	}
	return path1, path2
}

func clampedGauss(rng *rand.Rand, mean, stddev, floor float64) float64 {
	v := rng.NormFloat64()*stddev + mean
	if v < floor {
		return floor
	}
	return v
}
