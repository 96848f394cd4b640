package risk

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/stat"

	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/internal/modules/features"
)

// Config holds risk scorer configuration.
type Config struct {
	GBT GBTConfig `msgpack:"gbt"`
	// MinTrainingRows is the minimum count of valid (finite-target) rows
	// required before fitting. Below it the run fails hard.
	MinTrainingRows int `msgpack:"min_training_rows"`
}

// DefaultConfig returns the standard scorer configuration.
func DefaultConfig() Config {
	return Config{
		GBT:             DefaultGBTConfig(),
		MinTrainingRows: 10,
	}
}

// model couples a fitted ensemble with the feature schema it was trained
// on, so schema drift between training and inference is detectable.
type model struct {
	Schema []string  `msgpack:"schema"`
	GBT    *GBTModel `msgpack:"gbt"`
}

// Importance is one row of the normalized feature-importance ranking.
type Importance struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Scorer fits and applies the zone risk model.
type Scorer struct {
	cfg   Config
	log   zerolog.Logger
	model *model
}

// NewScorer creates an unfitted scorer.
func NewScorer(cfg Config, log zerolog.Logger) *Scorer {
	return &Scorer{
		cfg: cfg,
		log: log.With().Str("component", "risk_scorer").Logger(),
	}
}

// Fit trains the model on the feature table against per-zone historical
// outcome counts. Rows with a NaN target are excluded from training (their
// features still get scored later). Fails with domain.ErrInsufficientData
// when fewer than MinTrainingRows valid rows remain.
func (s *Scorer) Fit(t *features.Table, targets []float64) error {
	if len(targets) != t.Len() {
		return fmt.Errorf("%d targets for %d zones: %w", len(targets), t.Len(), domain.ErrFeatureMismatch)
	}

	var X [][]float64
	var y []float64
	for i := 0; i < t.Len(); i++ {
		if math.IsNaN(targets[i]) || math.IsInf(targets[i], 0) {
			continue
		}
		X = append(X, t.Values[i])
		y = append(y, targets[i])
	}
	if len(y) < s.cfg.MinTrainingRows {
		return fmt.Errorf("%d valid training rows, need %d: %w", len(y), s.cfg.MinTrainingRows, domain.ErrInsufficientData)
	}

	gbt := FitGBT(s.cfg.GBT, X, y)
	s.model = &model{
		Schema: append([]string(nil), t.Columns...),
		GBT:    gbt,
	}

	// Training fit quality, logged for the record. Poor signal (including
	// randomized targets) is tolerated; the model just explains less.
	pred := make([]float64, len(y))
	for i := range X {
		pred[i] = gbt.Predict(X[i])
	}
	var sse float64
	for i := range y {
		d := y[i] - pred[i]
		sse += d * d
	}
	rmse := math.Sqrt(sse / float64(len(y)))
	r2 := 1.0
	if v := stat.Variance(y, nil); v > 0 {
		r2 = 1 - sse/(v*float64(len(y)-1))
	}
	s.log.Info().
		Int("training_rows", len(y)).
		Int("trees", len(gbt.Trees)).
		Float64("rmse", rmse).
		Float64("r2", r2).
		Msg("Risk model fitted")

	return nil
}

// Score applies the fitted model to every zone in the table, returning one
// bounded risk score per zone in table order. Scores are clamped at zero
// and never NaN. Fails with domain.ErrFeatureMismatch when the table's
// schema differs from the one the model was trained on.
func (s *Scorer) Score(t *features.Table) ([]float64, error) {
	if s.model == nil {
		return nil, fmt.Errorf("risk scorer not fitted")
	}
	if err := s.checkSchema(t.Columns); err != nil {
		return nil, err
	}

	scores := make([]float64, t.Len())
	for i := 0; i < t.Len(); i++ {
		v := s.model.GBT.Predict(t.Values[i])
		if math.IsNaN(v) {
			return nil, fmt.Errorf("zone %s: model produced NaN score", t.Zones[i].Code)
		}
		scores[i] = math.Max(0, v)
	}
	return scores, nil
}

// FeatureImportance returns the normalized importance ranking, highest
// first. Weights sum to 1.0 unless the model never split (all zeros).
func (s *Scorer) FeatureImportance() ([]Importance, error) {
	if s.model == nil {
		return nil, fmt.Errorf("risk scorer not fitted")
	}
	weights := s.model.GBT.FeatureImportance()
	out := make([]Importance, len(weights))
	for i, w := range weights {
		out[i] = Importance{Feature: s.model.Schema[i], Weight: w}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out, nil
}

func (s *Scorer) checkSchema(columns []string) error {
	if len(columns) != len(s.model.Schema) {
		return fmt.Errorf("inference schema has %d columns, trained on %d: %w",
			len(columns), len(s.model.Schema), domain.ErrFeatureMismatch)
	}
	for i, col := range columns {
		if col != s.model.Schema[i] {
			return fmt.Errorf("inference column %d is %q, trained on %q: %w",
				i, col, s.model.Schema[i], domain.ErrFeatureMismatch)
		}
	}
	return nil
}

// Save serializes the fitted model to a msgpack file so later runs can
// score without refitting.
func (s *Scorer) Save(path string) error {
	if s.model == nil {
		return fmt.Errorf("risk scorer not fitted")
	}
	data, err := msgpack.Marshal(s.model)
	if err != nil {
		return fmt.Errorf("encode risk model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write risk model: %w", err)
	}
	return nil
}

// Load restores a previously saved model.
func (s *Scorer) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read risk model: %w", err)
	}
	var m model
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode risk model: %w", err)
	}
	if m.GBT == nil || len(m.Schema) == 0 {
		return fmt.Errorf("risk model file %s is empty or truncated", path)
	}
	s.model = &m
	return nil
}
