package search

import (
	"context"
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

// monotoneProbe passes every rate at or below the capacity.
func monotoneProbe(capacity float64) ProbeFunc {
	return func(_ context.Context, rate float64) ProbeResult {
		if rate <= capacity {
			return ProbeResult{Success: true, LossPercent: 0, ActualValue: rate}
		}
		return ProbeResult{Success: true, LossPercent: 5, ActualValue: capacity}
	}
}

func defaultOpts() RateSearchOptions {
	return RateSearchOptions{
		Low:           1,
		High:          1000,
		Tolerance:     0.01,
		LossThreshold: 0.001,
		MaxIterations: 20,
	}
}

func TestFindMaxRate_ConvergesToCapacity(t *testing.T) {
	capacity := 600.0
	result, err := FindMaxRate(context.Background(), monotoneProbe(capacity), defaultOpts())
	assert.NilError(t, err)

	assert.Assert(t, result.Converged)
	assert.Assert(t, result.BestRate <= capacity)
	// Within tolerance of the true capacity.
	assert.Assert(t, result.BestRate >= capacity*(1-2*0.01),
		"best %v too far below capacity %v", result.BestRate, capacity)
}

func TestFindMaxRate_WindowHalvesEachIteration(t *testing.T) {
	opts := defaultOpts()
	result, err := FindMaxRate(context.Background(), monotoneProbe(600), opts)
	assert.NilError(t, err)

	bound := int(math.Ceil(math.Log2((opts.High - opts.Low) / (opts.High * opts.Tolerance))))
	assert.Assert(t, result.Iterations <= bound,
		"used %d iterations, expected at most %d", result.Iterations, bound)
}

func TestFindMaxRate_AllFailing(t *testing.T) {
	probes := 0
	probe := func(_ context.Context, rate float64) ProbeResult {
		probes++
		return ProbeResult{Success: true, LossPercent: 50}
	}

	result, err := FindMaxRate(context.Background(), probe, defaultOpts())
	assert.NilError(t, err)
	assert.Equal(t, result.BestRate, 0.0)
	assert.Equal(t, result.Iterations, probes)
}

func TestFindMaxRate_ProbeErrorNeverPromotes(t *testing.T) {
	// Every probe at or below capacity passes, but the first succeeding
	// probe is preceded by a spurious failure. The failure may only
	// narrow the window; the final answer must still be a rate that was
	// actually observed passing.
	capacity := 400.0
	var passed []float64
	failedOnce := false
	probe := func(ctx context.Context, rate float64) ProbeResult {
		if !failedOnce {
			failedOnce = true
			return ProbeResult{Success: false}
		}
		result := monotoneProbe(capacity)(ctx, rate)
		if result.LossPercent == 0 {
			passed = append(passed, rate)
		}
		return result
	}

	result, err := FindMaxRate(context.Background(), probe, defaultOpts())
	assert.NilError(t, err)

	assert.Assert(t, result.BestRate <= capacity)
	found := false
	for _, rate := range passed {
		if rate == result.BestRate {
			found = true
		}
	}
	assert.Assert(t, found || result.BestRate == 0,
		"best rate %v was never observed passing", result.BestRate)
}

func TestFindMaxRate_IterationBudget(t *testing.T) {
	opts := defaultOpts()
	opts.MaxIterations = 3

	result, err := FindMaxRate(context.Background(), monotoneProbe(600), opts)
	assert.NilError(t, err)
	assert.Equal(t, result.Iterations, 3)
	assert.Assert(t, !result.Converged)
	assert.Assert(t, result.BestRate <= 600.0)
}

func TestFindMaxRate_InvalidOptions(t *testing.T) {
	probe := monotoneProbe(100)

	_, err := FindMaxRate(context.Background(), nil, defaultOpts())
	assert.ErrorContains(t, err, "probe")

	opts := defaultOpts()
	opts.High = opts.Low
	_, err = FindMaxRate(context.Background(), probe, opts)
	assert.ErrorContains(t, err, "bounds")

	opts = defaultOpts()
	opts.Tolerance = 0
	_, err = FindMaxRate(context.Background(), probe, opts)
	assert.ErrorContains(t, err, "tolerance")

	opts = defaultOpts()
	opts.MaxIterations = 0
	_, err = FindMaxRate(context.Background(), probe, opts)
	assert.ErrorContains(t, err, "iterations")
}

func TestFindMaxRate_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := FindMaxRate(ctx, monotoneProbe(600), defaultOpts())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, result.BestRate, 0.0)
}
