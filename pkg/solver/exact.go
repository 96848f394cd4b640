package solver

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
)

// Exact is a deterministic exact backend. With uncapacitated tasks the
// constraint matrix decomposes per agent, so each agent independently takes
// its best pair. With task capacities the problem is a max-weight bipartite
// b-matching, solved as a min-cost flow with unit augmentations.
type Exact struct {
	log zerolog.Logger
}

// NewExact creates the exact backend.
func NewExact(log zerolog.Logger) *Exact {
	return &Exact{log: log.With().Str("component", "solver").Logger()}
}

// Solve maximizes the model's objective. Honors ctx cancellation and
// deadline, returning ErrTimeout when the budget expires mid-search.
func (s *Exact) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	if len(m.Vars) == 0 {
		return &Solution{}, nil
	}

	var sol *Solution
	var err error
	if len(m.TaskCap) == 0 {
		sol, err = s.solveSeparable(ctx, m)
	} else {
		sol, err = s.solveFlow(ctx, m)
	}
	if err != nil {
		return nil, err
	}

	// A non-empty variable set with positive coefficients must yield at
	// least one chosen variable. Anything else is a backend fault.
	if len(sol.Chosen) == 0 && hasPositiveCoeff(m) {
		return nil, ErrInfeasible
	}

	s.log.Debug().
		Int("vars", len(m.Vars)).
		Int("chosen", len(sol.Chosen)).
		Float64("objective", sol.Objective).
		Msg("Solve complete")

	return sol, nil
}

func hasPositiveCoeff(m *Model) bool {
	for _, v := range m.Vars {
		if v.Coeff > 0 {
			return true
		}
	}
	return false
}

// solveSeparable handles the uncapacitated case: each agent picks its
// highest-coefficient pair. Ties break on lower task index for determinism.
func (s *Exact) solveSeparable(ctx context.Context, m *Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout
	}

	best := make([]int, m.NumAgents)
	for i := range best {
		best[i] = -1
	}
	for i, v := range m.Vars {
		if v.Coeff <= 0 {
			continue
		}
		j := best[v.Agent]
		if j < 0 || v.Coeff > m.Vars[j].Coeff ||
			(v.Coeff == m.Vars[j].Coeff && v.Task < m.Vars[j].Task) {
			best[v.Agent] = i
		}
	}

	sol := &Solution{}
	for _, i := range best {
		if i < 0 {
			continue
		}
		sol.Chosen = append(sol.Chosen, i)
		sol.Objective += m.Vars[i].Coeff
	}
	sort.Ints(sol.Chosen)
	return sol, nil
}

// flowEdge is one directed edge in the residual graph.
type flowEdge struct {
	to, rev, cap int
	cost         float64
	varIdx       int // index into Model.Vars, -1 for structural edges
}

// solveFlow handles capacitated tasks via successive shortest augmenting
// paths. Node layout: 0 = source, 1..A agents, A+1..A+T tasks, A+T+1 sink.
// Arc costs are negated coefficients; augmentation stops once the cheapest
// source-sink path no longer improves the objective.
func (s *Exact) solveFlow(ctx context.Context, m *Model) (*Solution, error) {
	numNodes := m.NumAgents + m.NumTasks + 2
	source := 0
	sink := numNodes - 1
	agentNode := func(a int) int { return 1 + a }
	taskNode := func(t int) int { return 1 + m.NumAgents + t }

	graph := make([][]flowEdge, numNodes)
	addEdge := func(from, to, cap int, cost float64, varIdx int) {
		graph[from] = append(graph[from], flowEdge{to: to, rev: len(graph[to]), cap: cap, cost: cost, varIdx: varIdx})
		graph[to] = append(graph[to], flowEdge{to: from, rev: len(graph[from]) - 1, cap: 0, cost: -cost, varIdx: varIdx})
	}

	agentUsed := make([]bool, m.NumAgents)
	taskUsed := make([]bool, m.NumTasks)
	for i, v := range m.Vars {
		if v.Coeff <= 0 {
			continue
		}
		if !agentUsed[v.Agent] {
			agentUsed[v.Agent] = true
			addEdge(source, agentNode(v.Agent), 1, 0, -1)
		}
		if !taskUsed[v.Task] {
			taskUsed[v.Task] = true
			cap := m.NumAgents // uncapacitated tasks can absorb every agent
			if c, ok := m.TaskCap[v.Task]; ok {
				cap = c
			}
			if cap > 0 {
				addEdge(taskNode(v.Task), sink, cap, 0, -1)
			}
		}
		addEdge(agentNode(v.Agent), taskNode(v.Task), 1, -v.Coeff, i)
	}

	const inf = 1e308
	dist := make([]float64, numNodes)
	prevNode := make([]int, numNodes)
	prevEdge := make([]int, numNodes)
	inQueue := make([]bool, numNodes)

	for {
		if err := ctx.Err(); err != nil {
			return nil, ErrTimeout
		}

		// Bellman-Ford (queue variant) shortest path on the residual graph.
		for i := range dist {
			dist[i] = inf
			prevNode[i] = -1
		}
		dist[source] = 0
		queue := []int{source}
		inQueue[source] = true
		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				return nil, ErrTimeout
			}
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for ei, e := range graph[u] {
				if e.cap <= 0 {
					continue
				}
				if nd := dist[u] + e.cost; nd < dist[e.to]-1e-12 {
					dist[e.to] = nd
					prevNode[e.to] = u
					prevEdge[e.to] = ei
					if !inQueue[e.to] {
						queue = append(queue, e.to)
						inQueue[e.to] = true
					}
				}
			}
		}

		// Stop once another unit of flow no longer improves the objective.
		if prevNode[sink] == -1 || dist[sink] >= 0 {
			break
		}

		for v := sink; v != source; v = prevNode[v] {
			e := &graph[prevNode[v]][prevEdge[v]]
			e.cap--
			graph[v][e.rev].cap++
		}
	}

	sol := &Solution{}
	for u := range graph {
		for _, e := range graph[u] {
			// A saturated agent->task arc means the variable was chosen.
			if e.varIdx >= 0 && e.cost < 0 && e.cap == 0 {
				sol.Chosen = append(sol.Chosen, e.varIdx)
				sol.Objective += m.Vars[e.varIdx].Coeff
			}
		}
	}
	sort.Ints(sol.Chosen)
	return sol, nil
}
