// Package report computes the before/after coverage deltas and
// distribution statistics consumed by external reporting.
package report

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/aedworks/coverplan/internal/domain"
)

// ZoneAllocation is one zone's before/after device picture.
type ZoneAllocation struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Prior     int     `json:"prior"`
	Allocated int     `json:"allocated"`
	Delta     int     `json:"delta"`
	RiskScore float64 `json:"risk_score"`
	Priority  float64 `json:"priority"`
}

// DistributionStats summarizes an integer allocation vector.
type DistributionStats struct {
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// ZoneCoverage aggregates the responders assigned to one zone.
// Contribution is the zone's share of the objective: Σ 1/responseTime
// over its responders, scaled by the zone priority.
type ZoneCoverage struct {
	Code             string  `json:"code"`
	Responders       int     `json:"responders"`
	MeanDistance     float64 `json:"mean_distance_m"`
	MeanResponseTime float64 `json:"mean_response_time"`
	Contribution     float64 `json:"contribution"`
}

// Report is the full run outcome contract.
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Zones       []ZoneAllocation  `json:"zones"`
	PriorStats  DistributionStats `json:"prior_stats"`
	AllocStats  DistributionStats `json:"allocation_stats"`
	Coverage    []ZoneCoverage    `json:"coverage"`
	Assigned    int               `json:"assigned_responders"`
	Unassigned  int               `json:"unassigned_responders"`
	Objective   float64           `json:"objective"`
}

// Build assembles the report from the run's outputs. Zones must carry
// their derived risk scores and priority weights.
func Build(runID string, zones []domain.Zone, inv domain.DeviceInventory, res *domain.AssignmentResult) *Report {
	r := &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
	}

	priorVec := make([]float64, 0, len(zones))
	allocVec := make([]float64, 0, len(zones))
	for _, z := range zones {
		prior := inv.Prior[z.Code]
		allocated := inv.Assigned[z.Code]
		r.Zones = append(r.Zones, ZoneAllocation{
			Code:      z.Code,
			Name:      z.Name,
			Prior:     prior,
			Allocated: allocated,
			Delta:     allocated - prior,
			RiskScore: z.RiskScore,
			Priority:  z.PriorityWeight,
		})
		priorVec = append(priorVec, float64(prior))
		allocVec = append(allocVec, float64(allocated))
	}
	sort.Slice(r.Zones, func(i, j int) bool { return r.Zones[i].Code < r.Zones[j].Code })
	r.PriorStats = summarize(priorVec)
	r.AllocStats = summarize(allocVec)

	if res != nil {
		r.Assigned = len(res.Assignments)
		r.Unassigned = len(res.Unassigned)
		r.Objective = res.Objective
		r.Coverage = coverage(zones, res)
	}

	return r
}

func summarize(vec []float64) DistributionStats {
	if len(vec) == 0 {
		return DistributionStats{}
	}
	s := DistributionStats{
		Mean: stat.Mean(vec, nil),
		Min:  int(vec[0]),
		Max:  int(vec[0]),
	}
	if len(vec) > 1 {
		s.StdDev = stat.StdDev(vec, nil)
	}
	for _, v := range vec {
		s.Total += int(v)
		if int(v) < s.Min {
			s.Min = int(v)
		}
		if int(v) > s.Max {
			s.Max = int(v)
		}
	}
	return s
}

func coverage(zones []domain.Zone, res *domain.AssignmentResult) []ZoneCoverage {
	priorities := make(map[string]float64, len(zones))
	for _, z := range zones {
		priorities[z.Code] = z.PriorityWeight
	}

	agg := make(map[string]*ZoneCoverage)
	for _, a := range res.Assignments {
		c, ok := agg[a.ZoneCode]
		if !ok {
			c = &ZoneCoverage{Code: a.ZoneCode}
			agg[a.ZoneCode] = c
		}
		c.Responders++
		c.MeanDistance += a.Distance
		c.MeanResponseTime += a.ResponseTime
		c.Contribution += priorities[a.ZoneCode] / a.ResponseTime
	}

	out := make([]ZoneCoverage, 0, len(agg))
	for _, c := range agg {
		c.MeanDistance /= float64(c.Responders)
		c.MeanResponseTime /= float64(c.Responders)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
