package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientData is returned when a stats computation receives no samples.
var ErrInsufficientData = errors.New("no samples")

// Stats summarizes a latency sample series. All values are milliseconds
// except Count. The JSON field names are consumed by the report and plot
// tooling and must not change.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	P999   float64 `json:"p99.9"`
	// Jitter is the sample standard deviation of the series, reported
	// under its own key because consumers look up both names.
	Jitter float64 `json:"jitter"`
}

// Compute calculates descriptive statistics over a latency series.
// Insertion order is irrelevant; the input slice is not modified.
func Compute(samples []float64) (Stats, error) {
	if len(samples) == 0 {
		return Stats{}, ErrInsufficientData
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	stddev := 0.0
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	return Stats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    mean,
		Median: percentileSorted(sorted, 50),
		StdDev: stddev,
		P50:    percentileSorted(sorted, 50),
		P90:    percentileSorted(sorted, 90),
		P95:    percentileSorted(sorted, 95),
		P99:    percentileSorted(sorted, 99),
		P999:   percentileSorted(sorted, 99.9),
		Jitter: stddev,
	}, nil
}

// Percentile returns the interpolated percentile of a series for
// pct in [0, 100]. The input slice is not modified.
func Percentile(samples []float64, pct float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrInsufficientData
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return percentileSorted(sorted, pct), nil
}

// percentileSorted interpolates linearly between the two closest ranks
// (type R-7): index = (n-1)*pct/100, blended by its fractional part.
// Nearest-rank implementations will disagree with these values; the
// interpolated form is the contract here.
func percentileSorted(sorted []float64, pct float64) float64 {
	index := float64(len(sorted)-1) * pct / 100
	floor := int(index)
	ceil := floor + 1
	if ceil >= len(sorted) {
		return sorted[floor]
	}
	frac := index - float64(floor)
	return sorted[floor]*(1-frac) + sorted[ceil]*frac
}
