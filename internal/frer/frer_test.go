package frer

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCompare_LengthMismatch(t *testing.T) {
	_, err := Compare([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCompare_Empty(t *testing.T) {
	_, err := Compare(nil, nil)
	assert.ErrorContains(t, err, "no samples")
}

func TestCompare_SelectsPerIndexMinimum(t *testing.T) {
	path1 := []float64{1.0, 5.0, 2.0, 8.0}
	path2 := []float64{4.0, 2.0, 3.0, 1.0}

	c, err := Compare(path1, path2)
	assert.NilError(t, err)

	// selected = [1, 2, 2, 1]
	assert.Equal(t, c.Selected.Min, 1.0)
	assert.Equal(t, c.Selected.Max, 2.0)
	assert.Equal(t, c.Selected.Avg, 1.5)
	assert.Assert(t, c.Selected.Avg <= c.Path1.Avg)
	assert.Assert(t, c.Selected.Avg <= c.Path2.Avg)
}

func TestCompare_SelfComparisonYieldsZeroImprovement(t *testing.T) {
	path := []float64{0.41, 0.38, 0.52, 0.47, 0.40, 0.44}

	c, err := Compare(path, path)
	assert.NilError(t, err)

	assert.Equal(t, c.ImprovementAvgPct, 0.0)
	assert.Equal(t, c.ImprovementP99Pct, 0.0)
	assert.Equal(t, c.ImprovementJitterPct, 0.0)
}

func TestCompare_ZeroBaseline(t *testing.T) {
	// All-zero primary must not divide by zero.
	c, err := Compare([]float64{0, 0, 0}, []float64{0, 0, 0})
	assert.NilError(t, err)

	assert.Equal(t, c.ImprovementAvgPct, 0.0)
	assert.Equal(t, c.ImprovementJitterPct, 0.0)
}

func TestSimulate_Reproducible(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Seed = 42
	cfg.Samples = 200

	first1, first2 := Simulate(cfg)
	second1, second2 := Simulate(cfg)

	assert.DeepEqual(t, first1, second1)
	assert.DeepEqual(t, first2, second2)
}

func TestSimulate_RespectsFloor(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Seed = 7
	cfg.Samples = 500

	path1, path2 := Simulate(cfg)
	assert.Equal(t, len(path1), 500)
	assert.Equal(t, len(path2), 500)
	for i := range path1 {
		assert.Assert(t, path1[i] >= cfg.FloorMS)
		assert.Assert(t, path2[i] >= cfg.FloorMS)
	}
}

func TestSimulate_SelectionImprovesPrimary(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Seed = 1

	path1, path2 := Simulate(cfg)
	c, err := Compare(path1, path2)
	assert.NilError(t, err)

	// First-copy selection can never be slower than the primary on
	// average, and with these parameters it is strictly faster.
	assert.Assert(t, c.ImprovementAvgPct > 0)
	assert.Assert(t, c.Selected.P99 <= c.Path1.P99)
}
