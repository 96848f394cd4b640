// Package risk provides the zone risk model: gradient-boosted regression
// trees fitted on historical outcome counts, scored per zone.
package risk

import (
	"math"
	"sort"
)

// GBTConfig holds the boosting hyperparameters. Defaults follow the
// original model: 100 rounds, depth 6, learning rate 0.1.
type GBTConfig struct {
	NumTrees       int     `msgpack:"num_trees"`
	MaxDepth       int     `msgpack:"max_depth"`
	LearningRate   float64 `msgpack:"learning_rate"`
	MinLeafSamples int     `msgpack:"min_leaf_samples"`
}

// DefaultGBTConfig returns the standard hyperparameters.
func DefaultGBTConfig() GBTConfig {
	return GBTConfig{
		NumTrees:       100,
		MaxDepth:       6,
		LearningRate:   0.1,
		MinLeafSamples: 2,
	}
}

// treeNode is one node of a regression tree, stored flat so the whole
// model serializes cleanly.
type treeNode struct {
	Feature   int     `msgpack:"feature"`
	Threshold float64 `msgpack:"threshold"`
	Left      int     `msgpack:"left"`
	Right     int     `msgpack:"right"`
	Value     float64 `msgpack:"value"`
	Leaf      bool    `msgpack:"leaf"`
}

type tree struct {
	Nodes []treeNode `msgpack:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// GBTModel is a fitted gradient-boosted ensemble with squared loss.
// Fully deterministic: no row or feature subsampling anywhere, so the same
// training matrix always produces the same model.
type GBTModel struct {
	Config      GBTConfig `msgpack:"config"`
	Base        float64   `msgpack:"base"`
	Trees       []tree    `msgpack:"trees"`
	Gains       []float64 `msgpack:"gains"` // accumulated squared-error reduction per feature
	NumFeatures int       `msgpack:"num_features"`
}

// FitGBT trains the ensemble on rows X (each of equal length) against
// targets y. Standard residual boosting: the base prediction is the target
// mean, then each round fits a depth-limited regression tree to the
// current residuals and shrinks its contribution by the learning rate.
func FitGBT(cfg GBTConfig, X [][]float64, y []float64) *GBTModel {
	m := &GBTModel{
		Config:      cfg,
		NumFeatures: len(X[0]),
		Gains:       make([]float64, len(X[0])),
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	m.Base = sum / float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.Base
	}

	residual := make([]float64, len(y))
	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}

	for round := 0; round < cfg.NumTrees; round++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		t := &tree{}
		b := treeBuilder{cfg: cfg, X: X, y: residual, tree: t, gains: m.Gains}
		b.grow(indices, 0)
		if len(t.Nodes) == 1 && t.Nodes[0].Value == 0 {
			// Residuals exhausted; further rounds would be no-ops.
			break
		}
		m.Trees = append(m.Trees, *t)

		for i := range pred {
			pred[i] += cfg.LearningRate * t.predict(X[i])
		}
	}

	return m
}

// Predict returns the raw model output for one feature vector.
func (m *GBTModel) Predict(x []float64) float64 {
	out := m.Base
	for i := range m.Trees {
		out += m.Config.LearningRate * m.Trees[i].predict(x)
	}
	return out
}

// FeatureImportance returns per-feature weights normalized to sum to 1.0.
// Features never used in a split get exactly 0. A model with no splits at
// all (degenerate targets) reports all zeros.
func (m *GBTModel) FeatureImportance() []float64 {
	out := make([]float64, m.NumFeatures)
	var total float64
	for _, g := range m.Gains {
		total += g
	}
	if total <= 0 {
		return out
	}
	for i, g := range m.Gains {
		out[i] = g / total
	}
	return out
}

// treeBuilder grows one regression tree on the residuals.
type treeBuilder struct {
	cfg   GBTConfig
	X     [][]float64
	y     []float64
	tree  *tree
	gains []float64
}

// grow recursively builds the subtree over the given row indices and
// returns the node index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, treeNode{Leaf: true, Value: mean(b.y, rows)})

	if depth >= b.cfg.MaxDepth || len(rows) < 2*b.cfg.MinLeafSamples {
		return idx
	}

	feature, threshold, gain := b.bestSplit(rows)
	if feature < 0 || gain <= 1e-12 {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < b.cfg.MinLeafSamples || len(right) < b.cfg.MinLeafSamples {
		return idx
	}

	b.gains[feature] += gain

	leftIdx := b.grow(left, depth+1)
	rightIdx := b.grow(right, depth+1)
	b.tree.Nodes[idx] = treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      leftIdx,
		Right:     rightIdx,
	}
	return idx
}

// bestSplit scans every feature for the threshold with the largest
// squared-error reduction. Ties break on lower feature index then lower
// threshold, keeping tree construction deterministic.
func (b *treeBuilder) bestSplit(rows []int) (int, float64, float64) {
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	var totalSum float64
	for _, r := range rows {
		totalSum += b.y[r]
	}
	n := float64(len(rows))
	parentScore := totalSum * totalSum / n

	order := make([]int, len(rows))
	for f := 0; f < len(b.X[rows[0]]); f++ {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool {
			if b.X[order[i]][f] != b.X[order[j]][f] {
				return b.X[order[i]][f] < b.X[order[j]][f]
			}
			return order[i] < order[j]
		})

		var leftSum float64
		for i := 0; i < len(order)-1; i++ {
			leftSum += b.y[order[i]]
			// Can't split between equal values.
			if b.X[order[i]][f] == b.X[order[i+1]][f] {
				continue
			}
			nl := float64(i + 1)
			nr := n - nl
			if int(nl) < b.cfg.MinLeafSamples || int(nr) < b.cfg.MinLeafSamples {
				continue
			}
			rightSum := totalSum - leftSum
			gain := leftSum*leftSum/nl + rightSum*rightSum/nr - parentScore
			threshold := (b.X[order[i]][f] + b.X[order[i+1]][f]) / 2
			if gain > bestGain+1e-12 ||
				(math.Abs(gain-bestGain) <= 1e-12 && bestFeature >= 0 && (f < bestFeature || (f == bestFeature && threshold < bestThreshold))) {
				bestFeature = f
				bestThreshold = threshold
				bestGain = gain
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func mean(y []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}
