package stats

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCompute_Empty(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompute_SingleSample(t *testing.T) {
	s, err := Compute([]float64{4.2})
	assert.NilError(t, err)

	assert.Equal(t, s.Count, 1)
	assert.Equal(t, s.Min, 4.2)
	assert.Equal(t, s.Max, 4.2)
	assert.Equal(t, s.Avg, 4.2)
	assert.Equal(t, s.Median, 4.2)
	assert.Equal(t, s.StdDev, 0.0)
	assert.Equal(t, s.Jitter, 0.0)
	assert.Equal(t, s.P999, 4.2)
}

func TestCompute_FiveSamples(t *testing.T) {
	s, err := Compute([]float64{1, 2, 3, 4, 5})
	assert.NilError(t, err)

	assert.Equal(t, s.Count, 5)
	assert.Equal(t, s.Min, 1.0)
	assert.Equal(t, s.Max, 5.0)
	assert.Equal(t, s.Avg, 3.0)
	assert.Equal(t, s.Median, 3.0)
	assert.Equal(t, s.P50, 3.0)
	// index = 4*0.9 = 3.6 -> 4*0.4 + 5*0.6
	assert.Equal(t, s.P90, 4.6)
	// index = 4*0.95 = 3.8 -> 4*0.2 + 5*0.8
	assert.Equal(t, s.P95, 4.800000000000001)
	// sample stddev of 1..5 is sqrt(2.5)
	assert.Equal(t, s.StdDev, 1.5811388300841898)
	assert.Equal(t, s.Jitter, s.StdDev)
}

func TestCompute_UnsortedInputNotModified(t *testing.T) {
	in := []float64{5, 1, 4, 2, 3}
	s, err := Compute(in)
	assert.NilError(t, err)

	assert.Equal(t, s.Median, 3.0)
	assert.DeepEqual(t, in, []float64{5, 1, 4, 2, 3})
}

func TestCompute_MedianEvenCount(t *testing.T) {
	s, err := Compute([]float64{1, 2, 3, 4})
	assert.NilError(t, err)

	// index = 3*0.5 = 1.5 -> midpoint of 2 and 3
	assert.Equal(t, s.Median, 2.5)
	assert.Equal(t, s.P50, 2.5)
}

func TestCompute_PercentileMonotonicity(t *testing.T) {
	samples := []float64{
		127, 19, 139, 34, 134, 236, 221, 61, 146, 151, 157, 45, 137,
		231, 46, 61, 215, 29, 189, 42, 108, 174, 235, 79, 167,
	}
	s, err := Compute(samples)
	assert.NilError(t, err)

	assert.Assert(t, s.Min <= s.P50)
	assert.Assert(t, s.P50 <= s.P90)
	assert.Assert(t, s.P90 <= s.P95)
	assert.Assert(t, s.P95 <= s.P99)
	assert.Assert(t, s.P99 <= s.P999)
	assert.Assert(t, s.P999 <= s.Max)
}

func TestPercentile_Deterministic(t *testing.T) {
	samples := []float64{0.31, 0.44, 0.29, 0.52, 0.38, 0.47, 0.35}

	for _, pct := range []float64{50, 90, 95, 99, 99.9} {
		first, err := Percentile(samples, pct)
		assert.NilError(t, err)
		second, err := Percentile(samples, pct)
		assert.NilError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestPercentile_Bounds(t *testing.T) {
	samples := []float64{3, 1, 2}

	p0, err := Percentile(samples, 0)
	assert.NilError(t, err)
	assert.Equal(t, p0, 1.0)

	p100, err := Percentile(samples, 100)
	assert.NilError(t, err)
	assert.Equal(t, p100, 3.0)
}
