package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() GBTConfig {
	return GBTConfig{
		NumTrees:       50,
		MaxDepth:       3,
		LearningRate:   0.1,
		MinLeafSamples: 1,
	}
}

func TestFitGBTLearnsStepFunction(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		x := float64(i)
		X = append(X, []float64{x})
		if x < 10 {
			y = append(y, 0)
		} else {
			y = append(y, 10)
		}
	}

	m := FitGBT(smallConfig(), X, y)

	assert.InDelta(t, 0.0, m.Predict([]float64{2}), 0.5)
	assert.InDelta(t, 10.0, m.Predict([]float64{17}), 0.5)
}

func TestFitGBTConstantTarget(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{7, 7, 7, 7}

	m := FitGBT(smallConfig(), X, y)

	// No residual signal: base prediction only, no usable trees.
	assert.InDelta(t, 7.0, m.Predict([]float64{100}), 1e-9)
	assert.Equal(t, []float64{0}, m.FeatureImportance())
}

func TestFitGBTDeterministic(t *testing.T) {
	X := [][]float64{
		{1, 5}, {2, 3}, {3, 8}, {4, 1}, {5, 9}, {6, 2}, {7, 7}, {8, 4},
	}
	y := []float64{2, 4, 9, 3, 11, 5, 10, 6}

	a := FitGBT(smallConfig(), X, y)
	b := FitGBT(smallConfig(), X, y)

	require.Equal(t, len(a.Trees), len(b.Trees))
	for _, x := range X {
		assert.Equal(t, a.Predict(x), b.Predict(x))
	}
	assert.Equal(t, a.FeatureImportance(), b.FeatureImportance())
}

func TestFeatureImportanceNormalized(t *testing.T) {
	// Only the first feature carries signal; the second is constant.
	var X [][]float64
	var y []float64
	for i := 0; i < 12; i++ {
		X = append(X, []float64{float64(i), 1.0})
		y = append(y, float64(i*i))
	}

	m := FitGBT(smallConfig(), X, y)
	imp := m.FeatureImportance()

	require.Len(t, imp, 2)
	var total float64
	for _, w := range imp {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, 0.0, imp[1])
	assert.Greater(t, imp[0], 0.9)
}

func TestFitGBTRespectsMinLeafSamples(t *testing.T) {
	cfg := smallConfig()
	cfg.MinLeafSamples = 3

	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{1, 2, 3, 4}

	// Four rows cannot produce two leaves of three: the root never splits
	// and every tree is a no-op, so fitting stops at the base prediction.
	m := FitGBT(cfg, X, y)
	assert.InDelta(t, 2.5, m.Predict([]float64{1}), 1e-9)
	assert.Empty(t, m.Trees)
}
