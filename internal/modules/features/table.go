// Package features provides the validated per-zone feature table consumed
// by the risk model, and the loaders that build it from snapshot files.
package features

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/domain"
)

// Canonical feature column names, in schema order. The risk model trains
// and scores against exactly this layout.
const (
	ColPopulation        = "population"
	ColHousingRatio      = "hdb_ratio"
	ColElderlyRatio      = "elderly_ratio"
	ColLowIncomeRatio    = "low_income_ratio"
	ColMobilityIntensity = "mobility_intensity"
	ColIncidentCount     = "incident_count"
	ColDeviceCount       = "device_count"
	ColDensity           = "density"
)

// Schema is the fixed column order of a feature table.
var Schema = []string{
	ColPopulation,
	ColHousingRatio,
	ColElderlyRatio,
	ColLowIncomeRatio,
	ColMobilityIntensity,
	ColIncidentCount,
	ColDeviceCount,
	ColDensity,
}

// ZoneFeatures is one raw input row: zone identity plus its feature values
// aligned with Schema. NaN marks a missing value to be imputed.
type ZoneFeatures struct {
	Zone   domain.Zone
	Values []float64
}

// Table is an immutable, fully-imputed feature matrix. One row per zone,
// columns in Schema order. Construct via Build; do not mutate afterwards.
type Table struct {
	Columns []string
	Zones   []domain.Zone
	Values  [][]float64
}

// Build validates raw rows and produces a table with every missing value
// imputed using the citywide column mean. Imputation is a data-quality
// fact, logged and counted, never an error. Fails on duplicate zone codes
// or rows whose value count does not match the schema.
func Build(rows []ZoneFeatures, log zerolog.Logger) (*Table, error) {
	log = log.With().Str("component", "features").Logger()

	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Zone.Code == "" {
			return nil, fmt.Errorf("zone with empty code (name %q)", r.Zone.Name)
		}
		if seen[r.Zone.Code] {
			return nil, fmt.Errorf("duplicate zone code %s", r.Zone.Code)
		}
		seen[r.Zone.Code] = true
		if len(r.Values) != len(Schema) {
			return nil, fmt.Errorf("zone %s: %d feature values, schema has %d", r.Zone.Code, len(r.Values), len(Schema))
		}
	}

	t := &Table{
		Columns: append([]string(nil), Schema...),
		Zones:   make([]domain.Zone, len(rows)),
		Values:  make([][]float64, len(rows)),
	}
	for i, r := range rows {
		t.Zones[i] = r.Zone
		t.Values[i] = append([]float64(nil), r.Values...)
	}

	// Citywide mean per column over present values only.
	for c := range t.Columns {
		var sum float64
		var n int
		for r := range t.Values {
			if v := t.Values[r][c]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		imputed := 0
		for r := range t.Values {
			if math.IsNaN(t.Values[r][c]) {
				t.Values[r][c] = mean
				imputed++
			}
		}
		if imputed > 0 {
			log.Info().
				Str("column", t.Columns[c]).
				Int("imputed_rows", imputed).
				Float64("citywide_mean", mean).
				Msg("Imputed missing feature values")
		}
	}

	return t, nil
}

// Len returns the number of zones in the table.
func (t *Table) Len() int { return len(t.Zones) }

// Column returns the values of a named column, or an error if the column
// is not part of the schema.
func (t *Table) Column(name string) ([]float64, error) {
	for c, col := range t.Columns {
		if col == name {
			out := make([]float64, len(t.Values))
			for r := range t.Values {
				out[r] = t.Values[r][c]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unknown feature column %q", name)
}

// DensityProxy returns the per-zone density proxy used for area weighting.
func (t *Table) DensityProxy() []float64 {
	vals, err := t.Column(ColDensity)
	if err != nil {
		// Schema always contains the density column.
		panic(err)
	}
	return vals
}
