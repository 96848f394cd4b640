// Package allocation distributes a fixed pool of indivisible devices
// across zones proportionally to priority, under per-zone floor and
// ceiling constraints.
package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/domain"
)

// Config holds allocator constraints.
type Config struct {
	// Floor is the minimum device count per zone (full coverage).
	Floor int
	// Ceiling is the maximum device count per zone. Zero or negative
	// means uncapped: the effective ceiling becomes the total unit count.
	Ceiling int
}

// DefaultConfig returns floor 1 and an uncapped ceiling.
func DefaultConfig() Config {
	return Config{Floor: 1, Ceiling: 0}
}

// ZonePriority pairs a zone code with its priority weight.
type ZonePriority struct {
	Code     string
	Priority float64
}

// Allocator produces integer device allocations. Deterministic: equal
// priorities break ties on ascending zone code.
type Allocator struct {
	cfg Config
	log zerolog.Logger
}

// New creates an allocator.
func New(cfg Config, log zerolog.Logger) *Allocator {
	return &Allocator{
		cfg: cfg,
		log: log.With().Str("component", "allocator").Logger(),
	}
}

// Allocate distributes totalUnits across the zones. Every zone first
// receives the floor; the remainder is split proportionally to priority
// with largest-remainder rounding, clamping at the ceiling and
// redistributing any excess to the next-highest-priority zones with
// headroom. The returned counts always sum exactly to totalUnits.
//
// Fails with domain.ErrInfeasibleAllocation when the floor cannot be
// covered or the ceiling cannot absorb the total.
func (a *Allocator) Allocate(totalUnits int, zones []ZonePriority) (map[string]int, error) {
	n := len(zones)
	if n == 0 {
		return nil, fmt.Errorf("no zones to allocate across")
	}
	if totalUnits < 0 {
		return nil, fmt.Errorf("negative total units %d", totalUnits)
	}

	ceiling := a.cfg.Ceiling
	if ceiling <= 0 {
		ceiling = totalUnits
	}

	if totalUnits < n*a.cfg.Floor {
		return nil, fmt.Errorf("%d units cannot cover %d zones at floor %d: %w",
			totalUnits, n, a.cfg.Floor, domain.ErrInfeasibleAllocation)
	}
	if totalUnits > n*ceiling {
		return nil, fmt.Errorf("%d units exceed %d zones at ceiling %d: %w",
			totalUnits, n, ceiling, domain.ErrInfeasibleAllocation)
	}

	// Work on a deterministic ordering regardless of caller order.
	ordered := append([]ZonePriority(nil), zones...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Code < ordered[j].Code
	})

	counts := make([]int, n)
	for i := range counts {
		counts[i] = a.cfg.Floor
	}
	remainder := totalUnits - n*a.cfg.Floor

	for remainder > 0 {
		given := a.distribute(ordered, counts, ceiling, remainder)
		if given == 0 {
			// Feasibility was checked above, so headroom always exists.
			return nil, fmt.Errorf("allocation stalled with %d units left: %w",
				remainder, domain.ErrInfeasibleAllocation)
		}
		remainder -= given
	}

	out := make(map[string]int, n)
	for i, z := range ordered {
		out[z.Code] = counts[i]
	}

	a.log.Debug().
		Int("total_units", totalUnits).
		Int("zones", n).
		Int("ceiling", ceiling).
		Msg("Allocation complete")

	return out, nil
}

// distribute performs one proportional pass over zones with headroom:
// integer shares first, then a largest-remainder pass for the leftovers.
// Returns the number of units placed.
func (a *Allocator) distribute(ordered []ZonePriority, counts []int, ceiling, remainder int) int {
	type candidate struct {
		idx  int
		frac float64
	}
	var cands []candidate
	var sumPriority float64
	for i, z := range ordered {
		if counts[i] < ceiling {
			cands = append(cands, candidate{idx: i})
			sumPriority += z.Priority
		}
	}
	if len(cands) == 0 {
		return 0
	}

	given := 0
	for k := range cands {
		i := cands[k].idx
		share := float64(remainder) / float64(len(cands))
		if sumPriority > 0 {
			share = float64(remainder) * ordered[i].Priority / sumPriority
		}
		whole := int(math.Floor(share))
		if headroom := ceiling - counts[i]; whole > headroom {
			whole = headroom
		}
		counts[i] += whole
		given += whole
		cands[k].frac = share - math.Floor(share)
	}

	// Largest-remainder pass: biggest fraction first, then higher
	// priority, then ascending zone code (ordered already encodes both).
	sort.SliceStable(cands, func(x, y int) bool {
		return cands[x].frac > cands[y].frac
	})
	for _, c := range cands {
		if given >= remainder {
			break
		}
		if counts[c.idx] < ceiling {
			counts[c.idx]++
			given++
		}
	}

	return given
}
