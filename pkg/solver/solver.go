// Package solver provides a small abstraction over maximizing a linear
// objective on binary decision variables with assignment-style constraints.
//
// A Model holds one binary variable per candidate (agent, task) pair. The
// structural constraint is always "at most one chosen variable per agent";
// tasks are uncapacitated unless TaskCap says otherwise. This covers both
// plain bipartite assignment and capacitated b-matching, and keeps the
// backend swappable (exact combinatorial today, an ILP solver if we ever
// need richer constraints).
package solver

import (
	"context"
	"errors"
)

// Errors returned by backends. Callers translate these into their own
// domain taxonomy.
var (
	// ErrTimeout - the time budget expired before a solution was proven.
	ErrTimeout = errors.New("solver: time budget exceeded")

	// ErrInfeasible - no solution found despite a non-empty variable set.
	ErrInfeasible = errors.New("solver: no solution found")

	// ErrBadModel - the model is malformed (out-of-range indices, etc).
	ErrBadModel = errors.New("solver: malformed model")
)

// Var is one binary decision variable: choose (Agent, Task) with objective
// contribution Coeff. Infeasible pairs are simply never added to the model.
type Var struct {
	Agent int
	Task  int
	Coeff float64
}

// Model describes the problem. Agents and tasks are dense indices in
// [0, NumAgents) and [0, NumTasks).
type Model struct {
	NumAgents int
	NumTasks  int
	Vars      []Var
	// TaskCap limits how many agents a task may receive. A missing entry
	// means the task is uncapacitated.
	TaskCap map[int]int
}

// Solution holds the chosen variable indices (into Model.Vars) and the
// achieved objective value.
type Solution struct {
	Chosen    []int
	Objective float64
}

// Solver maximizes a Model's objective. Implementations must be
// deterministic: the same model always yields the same solution.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// validate checks index ranges before a backend touches the model.
func validate(m *Model) error {
	if m == nil || m.NumAgents < 0 || m.NumTasks < 0 {
		return ErrBadModel
	}
	for _, v := range m.Vars {
		if v.Agent < 0 || v.Agent >= m.NumAgents || v.Task < 0 || v.Task >= m.NumTasks {
			return ErrBadModel
		}
	}
	return nil
}
