package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBias(t *testing.T) {
	b, err := Bias([]float64{2, 4, 6}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, b, 1e-9)

	_, err = Bias([]float64{1}, []float64{1, 2})
	require.Error(t, err)
	_, err = Bias(nil, nil)
	require.Error(t, err)
}

func TestRelativeBias(t *testing.T) {
	b, err := RelativeBias([]float64{3, 3}, []float64{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, b, 1e-9)

	_, err = RelativeBias([]float64{1, 1}, []float64{1, -1})
	require.Error(t, err, "zero reference mean")
}

func TestP95(t *testing.T) {
	model := make([]float64, 20)
	ref := make([]float64, 20)
	for i := range model {
		// Absolute differences 1 through 20, deliberately unordered by sign.
		d := float64(i + 1)
		if i%2 == 0 {
			d = -d
		}
		model[i] = d
	}

	p, err := P95(model, ref)
	require.NoError(t, err)
	assert.InDelta(t, 19.0, p, 1e-9)
}

func TestPatternCorrelation(t *testing.T) {
	ref := []float64{1, 2, 3, 4}

	r, err := PatternCorrelation([]float64{2, 4, 6, 8}, ref)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, err = PatternCorrelation([]float64{8, 6, 4, 2}, ref)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-9)
}

func TestSpatialStdDevRatio(t *testing.T) {
	r, err := SpatialStdDevRatio([]float64{0, 2, 4}, []float64{0, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r, 1e-9)

	_, err = SpatialStdDevRatio([]float64{1, 2}, []float64{5, 5})
	require.Error(t, err, "flat reference field")
}

func TestInterannualMetrics(t *testing.T) {
	model := []float64{10, 12, 11, 13}
	ref := []float64{20, 21, 20.5, 21.5}

	r, err := InterannualCorrelation(model, ref)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-6)

	ratio, err := InterannualStdDevRatio(model, ref)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ratio, 1e-6)
}

func TestAnnualCycleRankCorrelation(t *testing.T) {
	ref := []float64{1, 2, 3, 4, 5}

	// Monotone but nonlinear: rank correlation is exactly 1.
	r, err := AnnualCycleRankCorrelation([]float64{1, 10, 100, 1000, 10000}, ref)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, err = AnnualCycleRankCorrelation([]float64{5, 4, 3, 2, 1}, ref)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-9)
}

func TestAnnualCycleAmplitudeRatio(t *testing.T) {
	model := []float64{0, 5, 10, 5}
	ref := []float64{10, 12, 14, 12}

	r, err := AnnualCycleAmplitudeRatio(model, ref)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, r, 1e-9)

	_, err = AnnualCycleAmplitudeRatio(model, []float64{3, 3, 3, 3})
	require.Error(t, err, "flat reference cycle")
}

func TestRanksAverageTies(t *testing.T) {
	got := ranks([]float64{10, 20, 20, 30})
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, got)
}
