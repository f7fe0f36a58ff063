package sim

import (
	"errors"

	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/solver"
)

// Config holds the numeric settings of implicit group resolution.
type Config struct {
	Tolerance     float64
	MaxIterations int
}

func DefaultConfig() Config {
	return Config{
		Tolerance:     solver.DefaultTolerance,
		MaxIterations: solver.DefaultMaxIterations,
	}
}

// ImplicitSolve describes one resolution of an implicit group.
type ImplicitSolve struct {
	Step       int
	Time       float64
	Size       int
	Iterations int
	Residual   float64
	Converged  bool
}

// Observer is notified while a model is simulated.
type Observer interface {
	OnStart(plan *causal.Plan, steps int)
	OnStep(step int, t float64)
	OnImplicit(s ImplicitSolve)
	OnFinish(r *Report)
}

// Report summarises a run. Convergence failures do not stop a run; they
// are collected here and surfaced through Err.
type Report struct {
	Steps          int
	Equations      int
	ImplicitGroups int
	ImplicitSolves int
	Iterations     int
	MaxResidual    float64
	Failures       []*dynamo.ConvergenceError
}

// Failed reports whether any implicit group missed the tolerance.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// Err joins every convergence failure, nil for a clean run.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
