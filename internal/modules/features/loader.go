package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aedworks/coverplan/internal/domain"
)

// Column headers accepted in zone feature snapshots. The density column is
// optional; when absent the population count stands in as the density
// proxy, matching how the upstream data was produced.
var zoneRequired = []string{
	"subzone_code", "subzone_name", "planning_area",
	"latitude", "longitude",
	ColPopulation, ColHousingRatio, ColElderlyRatio, ColLowIncomeRatio,
	ColMobilityIntensity, ColIncidentCount, ColDeviceCount,
}

// LoadZones reads a zone feature snapshot CSV into raw rows ready for
// Build. Unparseable or empty numeric cells become NaN so Build can impute
// them; structural problems (missing columns, bad coordinates) are errors.
func LoadZones(path string) ([]ZoneFeatures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zone snapshot: %w", err)
	}
	defer f.Close()
	return ParseZones(f)
}

// ParseZones is LoadZones over an arbitrary reader.
func ParseZones(r io.Reader) ([]ZoneFeatures, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read zone header: %w", err)
	}
	idx, err := headerIndex(header, zoneRequired)
	if err != nil {
		return nil, err
	}
	densityCol := -1
	for i, h := range header {
		if strings.TrimSpace(h) == ColDensity {
			densityCol = i
		}
	}

	var rows []ZoneFeatures
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read zone row %d: %w", line, err)
		}
		line++

		code := strings.TrimSpace(rec[idx["subzone_code"]])
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[idx["latitude"]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec[idx["longitude"]]), 64)
		if latErr != nil || lonErr != nil {
			return nil, fmt.Errorf("zone %s: invalid centroid coordinates", code)
		}

		values := make([]float64, len(Schema))
		for i, col := range Schema {
			if col == ColDensity {
				if densityCol >= 0 {
					values[i] = parseCell(rec[densityCol])
				} else {
					values[i] = parseCell(rec[idx[ColPopulation]])
				}
				continue
			}
			values[i] = parseCell(rec[idx[col]])
		}

		rows = append(rows, ZoneFeatures{
			Zone: domain.Zone{
				Code:         code,
				Name:         strings.TrimSpace(rec[idx["subzone_name"]]),
				PlanningArea: strings.TrimSpace(rec[idx["planning_area"]]),
				Centroid:     domain.Point{Latitude: lat, Longitude: lon},
			},
			Values: values,
		})
	}
	return rows, nil
}

// LoadResponders reads a responder roster snapshot CSV.
func LoadResponders(path string) ([]domain.Responder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open responder roster: %w", err)
	}
	defer f.Close()
	return ParseResponders(f)
}

// ParseResponders is LoadResponders over an arbitrary reader. The roster
// is a hard contract: a row with a non-positive response time is an error,
// not something to impute around.
func ParseResponders(r io.Reader) ([]domain.Responder, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read responder header: %w", err)
	}
	required := []string{"responder_id", "latitude", "longitude", "available", "response_time"}
	idx, err := headerIndex(header, required)
	if err != nil {
		return nil, err
	}

	var out []domain.Responder
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read responder row %d: %w", line, err)
		}
		line++

		id := strings.TrimSpace(rec[idx["responder_id"]])
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[idx["latitude"]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec[idx["longitude"]]), 64)
		if latErr != nil || lonErr != nil {
			return nil, fmt.Errorf("responder %s: invalid home coordinates", id)
		}
		rt, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["response_time"]]), 64)
		if err != nil || rt <= 0 || math.IsNaN(rt) {
			return nil, fmt.Errorf("responder %s: response time must be strictly positive", id)
		}

		out = append(out, domain.Responder{
			ID:           id,
			Home:         domain.Point{Latitude: lat, Longitude: lon},
			Available:    parseBool(rec[idx["available"]]),
			ResponseTime: rt,
		})
	}
	return out, nil
}

// LoadPriorAllocation reads a prior per-zone device snapshot used for
// before/after reporting: columns subzone_code, device_count.
func LoadPriorAllocation(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prior allocation: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read prior allocation header: %w", err)
	}
	idx, err := headerIndex(header, []string{"subzone_code", ColDeviceCount})
	if err != nil {
		return nil, err
	}

	prior := make(map[string]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prior allocation row: %w", err)
		}
		code := strings.TrimSpace(rec[idx["subzone_code"]])
		n, err := strconv.Atoi(strings.TrimSpace(rec[idx[ColDeviceCount]]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("zone %s: invalid prior device count", code)
		}
		prior[code] = n
	}
	return prior, nil
}

func headerIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return idx, nil
}

// parseCell turns a numeric cell into a float, mapping blanks and
// non-numeric markers to NaN for downstream imputation.
func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}
