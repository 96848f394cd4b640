package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/pkg/solver"
)

// Config holds assignment optimizer configuration.
type Config struct {
	// ZoneCap limits responders per zone. Zero means uncapped
	// (many-to-one assignment).
	ZoneCap int
	// SolverTimeout bounds one solver invocation.
	SolverTimeout time.Duration
}

// DefaultConfig returns an uncapped assignment with a 30s solver budget.
func DefaultConfig() Config {
	return Config{ZoneCap: 0, SolverTimeout: 30 * time.Second}
}

// Optimizer solves the responder-zone matching as a maximization of
// Σ priority(zone) × (1/responseTime(responder)) over feasible pairs,
// with each responder assigned to at most one zone.
type Optimizer struct {
	cfg    Config
	solver solver.Solver
	log    zerolog.Logger
}

// New creates an optimizer around a solver backend.
func New(cfg Config, s solver.Solver, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		solver: s,
		log:    log.With().Str("component", "assignment").Logger(),
	}
}

// Optimize matches responders to zones. Zones must carry their priority
// weights; the matrix must have been built from the same zone and
// responder slices. Unavailable responders never enter the variable set.
// Available responders with no feasible pair come back in Unassigned -
// a valid solution state, not an error.
func (o *Optimizer) Optimize(
	ctx context.Context,
	zones []domain.Zone,
	responders []domain.Responder,
	m *DistanceMatrix,
) (*domain.AssignmentResult, error) {
	if len(m.D) != len(zones) || (len(zones) > 0 && len(m.D[0]) != len(responders)) {
		return nil, fmt.Errorf("distance matrix shape does not match %d zones x %d responders", len(zones), len(responders))
	}

	model := &solver.Model{
		NumAgents: len(responders),
		NumTasks:  len(zones),
	}
	if o.cfg.ZoneCap > 0 {
		model.TaskCap = make(map[int]int, len(zones))
		for z := range zones {
			model.TaskCap[z] = o.cfg.ZoneCap
		}
	}
	for j, r := range responders {
		if !r.Available {
			continue
		}
		for i := range zones {
			if !m.Feasible(i, j) {
				continue
			}
			model.Vars = append(model.Vars, solver.Var{
				Agent: j,
				Task:  i,
				Coeff: zones[i].PriorityWeight / r.ResponseTime,
			})
		}
	}

	o.log.Debug().
		Int("responders", len(responders)).
		Int("zones", len(zones)).
		Int("feasible_pairs", len(model.Vars)).
		Msg("Solving assignment")

	solveCtx := ctx
	if o.cfg.SolverTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, o.cfg.SolverTimeout)
		defer cancel()
	}

	sol, err := o.solver.Solve(solveCtx, model)
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrTimeout):
			return nil, fmt.Errorf("assignment over %d pairs: %w", len(model.Vars), domain.ErrSolverTimeout)
		case errors.Is(err, solver.ErrInfeasible):
			return nil, fmt.Errorf("assignment over %d pairs: %w", len(model.Vars), domain.ErrSolverInfeasible)
		default:
			return nil, fmt.Errorf("assignment solve: %w", err)
		}
	}

	result := &domain.AssignmentResult{Objective: sol.Objective}
	assigned := make(map[int]bool, len(sol.Chosen))
	for _, vi := range sol.Chosen {
		v := model.Vars[vi]
		assigned[v.Agent] = true
		result.Assignments = append(result.Assignments, domain.Assignment{
			ResponderID:  responders[v.Agent].ID,
			ZoneCode:     zones[v.Task].Code,
			Distance:     m.D[v.Task][v.Agent],
			ResponseTime: responders[v.Agent].ResponseTime,
			Weight:       v.Coeff,
		})
	}
	sort.Slice(result.Assignments, func(i, j int) bool {
		return result.Assignments[i].ResponderID < result.Assignments[j].ResponderID
	})

	for j, r := range responders {
		if r.Available && !assigned[j] {
			result.Unassigned = append(result.Unassigned, r.ID)
		}
	}
	sort.Strings(result.Unassigned)

	o.log.Info().
		Int("assigned", len(result.Assignments)).
		Int("unassigned", len(result.Unassigned)).
		Float64("objective", result.Objective).
		Msg("Assignment complete")

	return result, nil
}
