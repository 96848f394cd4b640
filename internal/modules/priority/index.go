// Package priority derives per-zone priority weights from risk scores and
// a density-based area weight. Priorities couple epidemiological severity
// with operational difficulty: denser zones are harder to cover.
package priority

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Config holds priority index configuration.
type Config struct {
	// Amplifier multiplies the priority of zones at or above the
	// amplification quantile of risk score. 1.0 means identity.
	Amplifier float64
	// AmplifyQuantile is the risk-score quantile above which the
	// amplifier applies.
	AmplifyQuantile float64
	// MinWeight keeps every priority strictly positive so downstream
	// proportional allocation never sees a zero-weight zone.
	MinWeight float64
}

// DefaultConfig returns the standard configuration: identity amplifier at
// the 80th percentile and a 0.001 weight floor.
func DefaultConfig() Config {
	return Config{
		Amplifier:       1.0,
		AmplifyQuantile: 0.80,
		MinWeight:       0.001,
	}
}

// Index computes priority weights. Pure and deterministic: the same risk
// and density inputs always produce the same weights.
type Index struct {
	cfg Config
	log zerolog.Logger
}

// New creates a priority index.
func New(cfg Config, log zerolog.Logger) *Index {
	return &Index{
		cfg: cfg,
		log: log.With().Str("component", "priority").Logger(),
	}
}

// Compute returns one weight in (0,1] per zone:
//
//	priority = normalize(risk) × areaWeight × amplifier
//
// normalize rescales risk linearly into [0,1] using this run's observed
// min/max; when every zone shares the same risk score the term is 1.0 for
// all, so priority reduces to the area weight. areaWeight is the density
// proxy divided by its maximum (1.0 for all when degenerate).
func (ix *Index) Compute(riskScores, densityProxy []float64) ([]float64, error) {
	n := len(riskScores)
	if n == 0 {
		return nil, fmt.Errorf("no zones to prioritize")
	}
	if len(densityProxy) != n {
		return nil, fmt.Errorf("%d density values for %d risk scores", len(densityProxy), n)
	}

	minRisk, maxRisk := riskScores[0], riskScores[0]
	maxDensity := densityProxy[0]
	for i := 1; i < n; i++ {
		if riskScores[i] < minRisk {
			minRisk = riskScores[i]
		}
		if riskScores[i] > maxRisk {
			maxRisk = riskScores[i]
		}
		if densityProxy[i] > maxDensity {
			maxDensity = densityProxy[i]
		}
	}

	threshold := ix.amplifyThreshold(riskScores)

	weights := make([]float64, n)
	amplified := 0
	for i := 0; i < n; i++ {
		normRisk := 1.0
		if maxRisk > minRisk {
			normRisk = (riskScores[i] - minRisk) / (maxRisk - minRisk)
		}

		areaWeight := 1.0
		if maxDensity > 0 {
			areaWeight = densityProxy[i] / maxDensity
		}

		w := normRisk * areaWeight
		if ix.cfg.Amplifier != 1.0 && riskScores[i] >= threshold {
			w *= ix.cfg.Amplifier
			amplified++
		}

		if w > 1.0 {
			w = 1.0
		}
		if w < ix.cfg.MinWeight {
			w = ix.cfg.MinWeight
		}
		weights[i] = w
	}

	if amplified > 0 {
		ix.log.Info().
			Int("zones", amplified).
			Float64("amplifier", ix.cfg.Amplifier).
			Float64("risk_threshold", threshold).
			Msg("Amplified top-quantile zone priorities")
	}

	return weights, nil
}

// amplifyThreshold returns the risk score at the configured quantile.
func (ix *Index) amplifyThreshold(riskScores []float64) float64 {
	sorted := append([]float64(nil), riskScores...)
	sort.Float64s(sorted)
	return stat.Quantile(ix.cfg.AmplifyQuantile, stat.Empirical, sorted, nil)
}
