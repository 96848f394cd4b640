package domain

import "errors"

// Fatal pipeline errors. All of them halt the run; callers wrap them with
// the offending zone/responder identifiers and match with errors.Is.
var (
	// ErrInsufficientData - training data too sparse to fit the risk model.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrFeatureMismatch - schema drift between training and inference features.
	ErrFeatureMismatch = errors.New("feature schema mismatch")

	// ErrInfeasibleAllocation - floor/ceiling/sum constraints unsatisfiable.
	// The caller must relax the configuration or pass a feasible total.
	ErrInfeasibleAllocation = errors.New("infeasible allocation")

	// ErrSolverInfeasible - the solver found no solution despite a non-empty
	// feasible region. An internal solver fault, not a modeling outcome.
	ErrSolverInfeasible = errors.New("solver found no solution")

	// ErrSolverTimeout - the solver exceeded its configured time budget.
	ErrSolverTimeout = errors.New("solver timed out")
)
