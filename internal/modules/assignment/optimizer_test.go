package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/pkg/solver"
)

func testOptimizer(cfg Config) *Optimizer {
	return New(cfg, solver.NewExact(zerolog.Nop()), zerolog.Nop())
}

func buildMatrix(t *testing.T, zones []domain.Zone, responders []domain.Responder, dmax float64) *DistanceMatrix {
	t.Helper()
	m, err := BuildDistanceMatrix(context.Background(), zones, responders, dmax)
	require.NoError(t, err)
	return m
}

func TestOptimizeReachabilityThreshold(t *testing.T) {
	// One zone, two responders: A within 1000m is assigned, B beyond the
	// threshold stays unassigned without failing the run.
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 0.8}}
	responders := []domain.Responder{
		{ID: "A", Home: offsetNorth(zoneCentroid, 500), Available: true, ResponseTime: 5},
		{ID: "B", Home: offsetNorth(zoneCentroid, 2000), Available: true, ResponseTime: 4},
	}

	res, err := testOptimizer(DefaultConfig()).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 1000))
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "A", res.Assignments[0].ResponderID)
	assert.Equal(t, "Z1", res.Assignments[0].ZoneCode)
	assert.InDelta(t, 0.8/5.0, res.Assignments[0].Weight, 1e-9)
	assert.Equal(t, []string{"B"}, res.Unassigned)
	assert.InDelta(t, 0.8/5.0, res.Objective, 1e-9)
}

func TestOptimizePrefersHigherPriorityZone(t *testing.T) {
	near := zoneCentroid
	zones := []domain.Zone{
		{Code: "LOW", Centroid: near, PriorityWeight: 0.2},
		{Code: "HIGH", Centroid: offsetNorth(near, 200), PriorityWeight: 0.9},
	}
	responders := []domain.Responder{
		{ID: "R1", Home: offsetNorth(near, 100), Available: true, ResponseTime: 6},
	}

	res, err := testOptimizer(DefaultConfig()).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 1000))
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "HIGH", res.Assignments[0].ZoneCode)
	assert.Empty(t, res.Unassigned)
}

func TestOptimizeManyToOne(t *testing.T) {
	// Uncapped zones accept several responders.
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 1.0}}
	responders := []domain.Responder{
		{ID: "A", Home: offsetNorth(zoneCentroid, 100), Available: true, ResponseTime: 5},
		{ID: "B", Home: offsetNorth(zoneCentroid, 200), Available: true, ResponseTime: 4},
		{ID: "C", Home: offsetNorth(zoneCentroid, 300), Available: true, ResponseTime: 8},
	}

	res, err := testOptimizer(DefaultConfig()).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 1000))
	require.NoError(t, err)
	assert.Len(t, res.Assignments, 3)
	assert.Empty(t, res.Unassigned)
}

func TestOptimizeZoneCap(t *testing.T) {
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 1.0}}
	responders := []domain.Responder{
		{ID: "A", Home: offsetNorth(zoneCentroid, 100), Available: true, ResponseTime: 5},
		{ID: "B", Home: offsetNorth(zoneCentroid, 200), Available: true, ResponseTime: 4},
		{ID: "C", Home: offsetNorth(zoneCentroid, 300), Available: true, ResponseTime: 8},
	}

	cfg := DefaultConfig()
	cfg.ZoneCap = 2
	res, err := testOptimizer(cfg).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 1000))
	require.NoError(t, err)

	// The two fastest responders (highest 1/responseTime) fill the cap.
	require.Len(t, res.Assignments, 2)
	assert.Equal(t, "A", res.Assignments[0].ResponderID)
	assert.Equal(t, "B", res.Assignments[1].ResponderID)
	assert.Equal(t, []string{"C"}, res.Unassigned)
}

func TestOptimizeUnavailableExcluded(t *testing.T) {
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 1.0}}
	responders := []domain.Responder{
		{ID: "A", Home: zoneCentroid, Available: false, ResponseTime: 5},
	}

	res, err := testOptimizer(DefaultConfig()).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 1000))
	require.NoError(t, err)

	// Unavailable responders are neither assigned nor reported unassigned.
	assert.Empty(t, res.Assignments)
	assert.Empty(t, res.Unassigned)
}

func TestOptimizeResponderAtMostOnce(t *testing.T) {
	zones := []domain.Zone{
		{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 0.5},
		{Code: "Z2", Centroid: offsetNorth(zoneCentroid, 300), PriorityWeight: 0.6},
		{Code: "Z3", Centroid: offsetNorth(zoneCentroid, 600), PriorityWeight: 0.7},
	}
	responders := []domain.Responder{
		{ID: "A", Home: offsetNorth(zoneCentroid, 300), Available: true, ResponseTime: 5},
		{ID: "B", Home: offsetNorth(zoneCentroid, 400), Available: true, ResponseTime: 6},
	}

	res, err := testOptimizer(DefaultConfig()).Optimize(
		context.Background(), zones, responders, buildMatrix(t, zones, responders, 2000))
	require.NoError(t, err)

	seen := map[string]int{}
	for _, a := range res.Assignments {
		seen[a.ResponderID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "responder %s assigned %d times", id, n)
	}
}

func TestOptimizeShapeMismatch(t *testing.T) {
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 1.0}}
	responders := []domain.Responder{
		{ID: "A", Home: zoneCentroid, Available: true, ResponseTime: 5},
	}
	m := buildMatrix(t, zones, nil, 1000)

	_, err := testOptimizer(DefaultConfig()).Optimize(context.Background(), zones, responders, m)
	require.Error(t, err)
}

func TestOptimizeTimeout(t *testing.T) {
	zones := []domain.Zone{{Code: "Z1", Centroid: zoneCentroid, PriorityWeight: 1.0}}
	responders := []domain.Responder{
		{ID: "A", Home: zoneCentroid, Available: true, ResponseTime: 5},
	}
	m := buildMatrix(t, zones, responders, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{SolverTimeout: time.Hour}
	_, err := testOptimizer(cfg).Optimize(ctx, zones, responders, m)
	assert.ErrorIs(t, err, domain.ErrSolverTimeout)
}
