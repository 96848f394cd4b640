// Package assignment matches responders to zones, maximizing a priority-
// and reachability-weighted objective over a pruned distance matrix.
package assignment

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/internal/geo"
)

// DistanceMatrix holds zone x responder geodesic distances in meters.
// Entries beyond the reachability threshold, and entire columns for
// unavailable responders, are +Inf: those pairs never enter the solver.
// Rebuilt per run; read-only after Build returns.
type DistanceMatrix struct {
	ZoneCodes    []string
	ResponderIDs []string
	DMax         float64
	D            [][]float64 // [zone][responder]
}

// BuildDistanceMatrix computes the matrix row-parallel. Every cell is
// written exactly once by exactly one goroutine, so no locking is needed.
func BuildDistanceMatrix(ctx context.Context, zones []domain.Zone, responders []domain.Responder, dmax float64) (*DistanceMatrix, error) {
	m := &DistanceMatrix{
		ZoneCodes:    make([]string, len(zones)),
		ResponderIDs: make([]string, len(responders)),
		DMax:         dmax,
		D:            make([][]float64, len(zones)),
	}
	for i, z := range zones {
		m.ZoneCodes[i] = z.Code
	}
	for j, r := range responders {
		m.ResponderIDs[j] = r.ID
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range zones {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := make([]float64, len(responders))
			for j, r := range responders {
				if !r.Available {
					row[j] = math.Inf(1)
					continue
				}
				d := geo.Distance(zones[i].Centroid, r.Home)
				if d > dmax {
					d = math.Inf(1)
				}
				row[j] = d
			}
			m.D[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Feasible reports whether the (zone, responder) pair survived pruning.
func (m *DistanceMatrix) Feasible(zone, responder int) bool {
	return !math.IsInf(m.D[zone][responder], 1)
}

// FeasiblePairs counts the surviving pairs.
func (m *DistanceMatrix) FeasiblePairs() int {
	n := 0
	for i := range m.D {
		for j := range m.D[i] {
			if !math.IsInf(m.D[i][j], 1) {
				n++
			}
		}
	}
	return n
}
