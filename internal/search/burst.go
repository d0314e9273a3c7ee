package search

import (
	"context"
	"errors"
	"math"
)

// BurstProbeFunc runs one back-to-back trial at the candidate burst size.
type BurstProbeFunc func(ctx context.Context, burstSize int) ProbeResult

// BurstSearchOptions bound a back-to-back capacity search.
type BurstSearchOptions struct {
	// LossThreshold is the loss percentage at which a burst counts as
	// dropped; trials stop scanning at the first candidate reaching it.
	LossThreshold float64
	// Trials is the number of independent scans to aggregate.
	Trials int
}

// BurstResult reports back-to-back capacity for one frame size. The JSON
// field names are consumed by the report tooling and must not change.
type BurstResult struct {
	FrameSize int `json:"frame_size"`
	// MaxBurstNoLoss is the minimum over trials: a capacity claim must
	// hold on the worst observed run, not a lucky one.
	MaxBurstNoLoss int     `json:"max_burst_no_loss"`
	TrialValues    []int   `json:"trial_values"`
	AvgBurst       float64 `json:"avg_burst"`
	StdDevBurst    float64 `json:"stddev_burst"`
}

// FindMaxBurst scans the ascending candidate sizes once per trial,
// probing each until loss reaches the threshold. A trial's result is the
// largest size that passed before the first failure, 0 when the smallest
// candidate already fails. Probe errors count as failures. The aggregate
// is the conservative minimum across trials, with avg/stddev reported for
// variability.
func FindMaxBurst(ctx context.Context, candidates []int, probe BurstProbeFunc, opts BurstSearchOptions) (BurstResult, error) {
	if probe == nil {
		return BurstResult{}, errors.New("probe must not be nil")
	}
	if len(candidates) == 0 {
		return BurstResult{}, errors.New("no candidate burst sizes")
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i] <= candidates[i-1] {
			return BurstResult{}, errors.New("candidate burst sizes must be strictly ascending")
		}
	}
	if opts.Trials <= 0 {
		return BurstResult{}, errors.New("trials must be > 0")
	}

	trialValues := make([]int, 0, opts.Trials)
	for trial := 0; trial < opts.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return BurstResult{}, err
		}

		passed := 0
		for _, size := range candidates {
			result := probe(ctx, size)
			loss := result.LossPercent
			if !result.Success {
				loss = 100
			}
			if loss >= opts.LossThreshold {
				break
			}
			passed = size
		}
		trialValues = append(trialValues, passed)
	}

	minBurst := trialValues[0]
	sum := 0.0
	for _, v := range trialValues {
		if v < minBurst {
			minBurst = v
		}
		sum += float64(v)
	}
	avg := sum / float64(len(trialValues))

	stddev := 0.0
	if len(trialValues) > 1 {
		var sq float64
		for _, v := range trialValues {
			d := float64(v) - avg
			sq += d * d
		}
		stddev = math.Sqrt(sq / float64(len(trialValues)-1))
	}

	return BurstResult{
		MaxBurstNoLoss: minBurst,
		TrialValues:    trialValues,
		AvgBurst:       avg,
		StdDevBurst:    stddev,
	}, nil
}
