package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aedworks/coverplan/internal/domain"
)

func testZones() []domain.Zone {
	return []domain.Zone{
		{Code: "Z1", Name: "One", RiskScore: 3.0, PriorityWeight: 0.2},
		{Code: "Z2", Name: "Two", RiskScore: 9.0, PriorityWeight: 0.8},
		{Code: "Z3", Name: "Three", RiskScore: 6.0, PriorityWeight: 0.5},
	}
}

func TestBuildDeltas(t *testing.T) {
	inv := domain.DeviceInventory{
		TotalUnits: 9,
		Prior:      map[string]int{"Z1": 4, "Z2": 1},
		Assigned:   map[string]int{"Z1": 2, "Z2": 4, "Z3": 3},
	}

	rep := Build("run-1", testZones(), inv, nil)

	require.Len(t, rep.Zones, 3)
	assert.Equal(t, "Z1", rep.Zones[0].Code)
	assert.Equal(t, -2, rep.Zones[0].Delta)
	assert.Equal(t, 3, rep.Zones[1].Delta)
	// Z3 had no prior entry: everything allocated is new.
	assert.Equal(t, 0, rep.Zones[2].Prior)
	assert.Equal(t, 3, rep.Zones[2].Delta)
}

func TestBuildDistributionStats(t *testing.T) {
	inv := domain.DeviceInventory{
		TotalUnits: 9,
		Prior:      map[string]int{"Z1": 1, "Z2": 1, "Z3": 1},
		Assigned:   map[string]int{"Z1": 2, "Z2": 4, "Z3": 3},
	}

	rep := Build("run-1", testZones(), inv, nil)

	assert.Equal(t, 3, rep.PriorStats.Total)
	assert.InDelta(t, 1.0, rep.PriorStats.Mean, 1e-9)
	assert.InDelta(t, 0.0, rep.PriorStats.StdDev, 1e-9)

	assert.Equal(t, 9, rep.AllocStats.Total)
	assert.InDelta(t, 3.0, rep.AllocStats.Mean, 1e-9)
	assert.Equal(t, 2, rep.AllocStats.Min)
	assert.Equal(t, 4, rep.AllocStats.Max)
	assert.InDelta(t, 1.0, rep.AllocStats.StdDev, 1e-9)
}

func TestBuildCoverage(t *testing.T) {
	res := &domain.AssignmentResult{
		Assignments: []domain.Assignment{
			{ResponderID: "A", ZoneCode: "Z2", Distance: 400, ResponseTime: 4, Weight: 0.2},
			{ResponderID: "B", ZoneCode: "Z2", Distance: 600, ResponseTime: 8, Weight: 0.1},
			{ResponderID: "C", ZoneCode: "Z1", Distance: 300, ResponseTime: 5, Weight: 0.04},
		},
		Unassigned: []string{"D"},
		Objective:  0.34,
	}
	inv := domain.DeviceInventory{TotalUnits: 3, Assigned: map[string]int{"Z1": 1, "Z2": 2}}

	rep := Build("run-1", testZones(), inv, res)

	assert.Equal(t, 3, rep.Assigned)
	assert.Equal(t, 1, rep.Unassigned)
	assert.InDelta(t, 0.34, rep.Objective, 1e-9)

	require.Len(t, rep.Coverage, 2)
	assert.Equal(t, "Z1", rep.Coverage[0].Code)
	assert.Equal(t, "Z2", rep.Coverage[1].Code)

	z2 := rep.Coverage[1]
	assert.Equal(t, 2, z2.Responders)
	assert.InDelta(t, 500, z2.MeanDistance, 1e-9)
	assert.InDelta(t, 6, z2.MeanResponseTime, 1e-9)
	// Z2 priority 0.8: 0.8/4 + 0.8/8
	assert.InDelta(t, 0.3, z2.Contribution, 1e-9)
}

func TestBuildEmpty(t *testing.T) {
	rep := Build("run-1", nil, domain.DeviceInventory{}, nil)
	assert.Empty(t, rep.Zones)
	assert.Equal(t, DistributionStats{}, rep.PriorStats)
	assert.Empty(t, rep.Coverage)
	assert.NotZero(t, rep.GeneratedAt)
	assert.Equal(t, "run-1", rep.RunID)
}
