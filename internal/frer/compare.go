// Package frer models the latency behavior of dual-path frame replication:
// the receiver keeps whichever copy arrives first, so the effective
// latency of each frame is the minimum across paths.
package frer

import (
	"errors"

	"github.com/NodePath81/tsnperf/internal/stats"
)

// ErrLengthMismatch is returned when the two path series cannot be paired
// sample-for-sample.
var ErrLengthMismatch = errors.New("path sample counts differ")

// Comparison holds per-path statistics and the improvement of first-copy
// selection over the primary path. The JSON field names are consumed by
// the report tooling and must not change.
type Comparison struct {
	Path1    stats.Stats `json:"path1"`
	Path2    stats.Stats `json:"path2"`
	Selected stats.Stats `json:"frer"`
	// Improvements are relative to path 1, the nominal primary.
	ImprovementAvgPct    float64 `json:"improvement_avg_pct"`
	ImprovementP99Pct    float64 `json:"improvement_p99_pct"`
	ImprovementJitterPct float64 `json:"improvement_jitter_pct"`
}

// Compare pairs the two latency series index-by-index, forms the
// first-arrival (per-index minimum) series, and summarizes all three.
func Compare(path1, path2 []float64) (Comparison, error) {
	if len(path1) != len(path2) {
		return Comparison{}, ErrLengthMismatch
	}

	selected := make([]float64, len(path1))
	for i := range path1 {
		selected[i] = path1[i]
		if path2[i] < selected[i] {
			selected[i] = path2[i]
		}
	}

	stats1, err := stats.Compute(path1)
	if err != nil {
		return Comparison{}, err
	}
	stats2, err := stats.Compute(path2)
	if err != nil {
		return Comparison{}, err
	}
	statsSel, err := stats.Compute(selected)
	if err != nil {
		return Comparison{}, err
	}

	return Comparison{
		Path1:                stats1,
		Path2:                stats2,
		Selected:             statsSel,
		ImprovementAvgPct:    improvement(stats1.Avg, statsSel.Avg),
		ImprovementP99Pct:    improvement(stats1.P99, statsSel.P99),
		ImprovementJitterPct: improvement(stats1.Jitter, statsSel.Jitter),
	}, nil
}

// improvement is the relative reduction versus the baseline, as a
// percentage. A zero baseline yields 0 rather than a division fault.
func improvement(baseline, selected float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (baseline - selected) / baseline * 100
}
