// Package search contains the measurement search controllers: a bisection
// over offered rate for zero-loss throughput and a discrete scan over
// burst sizes for back-to-back capacity. Both are driven by an injected
// probe callback and perform no I/O of their own.
package search

import (
	"context"
	"errors"
	"fmt"
)

// ProbeResult is the outcome of a single measurement trial at a candidate
// rate or burst size. It is produced by the probe callback and consumed
// immediately; the engines never retain it past the iteration.
type ProbeResult struct {
	// Success is false when the trial produced no usable data (tool
	// error, timeout, no report). A failed trial is treated as full
	// loss and never promotes the candidate.
	Success     bool
	LossPercent float64
	// ActualValue is the achieved rate or size the tool reported.
	ActualValue float64
	PacketsSent int64
	PacketsLost int64
}

// ProbeFunc runs one trial at the candidate rate. The engine imposes no
// timeout of its own; cancellation must be handled inside the callback,
// which reports it as a failed trial.
type ProbeFunc func(ctx context.Context, rate float64) ProbeResult

// RateSearchOptions bound a zero-loss rate search.
type RateSearchOptions struct {
	// Low and High bracket the search in the probe's rate unit.
	Low  float64
	High float64
	// Tolerance ends the search once (high-low)/high falls below it.
	Tolerance float64
	// LossThreshold is the loss percentage below which a trial passes.
	LossThreshold float64
	// MaxIterations caps the number of probes.
	MaxIterations int
}

// RateSearchResult reports the outcome of a rate search.
type RateSearchResult struct {
	// BestRate is the highest rate observed passing, 0 if none passed.
	BestRate float64 `json:"best_rate"`
	// Iterations is the number of probes actually spent.
	Iterations int `json:"iterations"`
	// Converged is false when the iteration budget ran out before the
	// window closed; BestRate is still a valid conservative answer.
	Converged bool `json:"converged"`
}

// FindMaxRate bisects for the maximum rate sustaining loss below the
// threshold. A passing probe raises the lower bound and the best-known
// rate; a failing or errored probe lowers the upper bound. BestRate is
// monotonically non-decreasing across iterations, so stopping early never
// inflates the answer, and a spurious probe failure can only narrow the
// window.
func FindMaxRate(ctx context.Context, probe ProbeFunc, opts RateSearchOptions) (RateSearchResult, error) {
	if probe == nil {
		return RateSearchResult{}, errors.New("probe must not be nil")
	}
	if opts.Low <= 0 || opts.High <= opts.Low {
		return RateSearchResult{}, fmt.Errorf("invalid search bounds [%v, %v]", opts.Low, opts.High)
	}
	if opts.Tolerance <= 0 {
		return RateSearchResult{}, errors.New("tolerance must be > 0")
	}
	if opts.MaxIterations <= 0 {
		return RateSearchResult{}, errors.New("max iterations must be > 0")
	}

	low := opts.Low
	high := opts.High
	best := 0.0
	iterations := 0

	for (high-low)/high >= opts.Tolerance && iterations < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return RateSearchResult{BestRate: best, Iterations: iterations}, err
		}
		iterations++
		mid := (low + high) / 2

		result := probe(ctx, mid)
		if !result.Success {
			high = mid
			continue
		}
		if result.LossPercent < opts.LossThreshold {
			best = mid
			low = mid
		} else {
			high = mid
		}
	}

	return RateSearchResult{
		BestRate:   best,
		Iterations: iterations,
		Converged:  (high-low)/high < opts.Tolerance,
	}, nil
}
