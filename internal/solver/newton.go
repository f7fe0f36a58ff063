// Package solver drives nonlinear residual systems to zero.
package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultTolerance     = 1e-10
	DefaultMaxIterations = 50

	maxHalvings = 12
)

// Settings bounds the Newton iteration.
type Settings struct {
	Tolerance     float64
	MaxIterations int
}

func DefaultSettings() Settings {
	return Settings{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// Result is the best point found. Residual is the infinity norm of f(X).
type Result struct {
	X          []float64
	Residual   float64
	Iterations int
	Converged  bool
}

// Newton solves f(x) = 0 from x0 with a damped Newton iteration. The
// Jacobian is approximated by forward differences.
//
// f is evaluated at the returned X last, so a residual that writes its
// candidate into shared buffers leaves the accepted point in place.
func Newton(f func(dst, x []float64), x0 []float64, s Settings) Result {
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}

	n := len(x0)
	if n == 0 {
		return Result{Converged: true}
	}
	x := append([]float64(nil), x0...)
	fx := make([]float64, n)
	trial := make([]float64, n)
	ftrial := make([]float64, n)
	neg := make([]float64, n)
	jac := mat.NewDense(n, n, nil)

	f(fx, x)
	norm := infNorm(fx)
	iterations := 0

	for iterations < s.MaxIterations && !converged(norm, x, s.Tolerance) {
		fd.Jacobian(jac, f, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: fx,
			Step:        1e-7 * math.Max(1, infNorm(x)),
		})

		floats.ScaleTo(neg, -1, fx)
		var dx mat.VecDense
		if err := dx.SolveVec(jac, mat.NewVecDense(n, neg)); err != nil && !usable(err) {
			break
		}
		step := dx.RawVector().Data
		if !finite(step) {
			break
		}

		accepted := false
		lambda := 1.0
		var tnorm float64
		for k := 0; k < maxHalvings; k++ {
			copy(trial, x)
			floats.AddScaled(trial, lambda, step)
			f(ftrial, trial)
			tnorm = infNorm(ftrial)
			if tnorm < norm {
				accepted = true
				break
			}
			lambda /= 2
		}
		iterations++
		if !accepted {
			break
		}

		x, trial = trial, x
		fx, ftrial = ftrial, fx
		norm = tnorm
	}

	f(fx, x)
	norm = infNorm(fx)
	return Result{
		X:          x,
		Residual:   norm,
		Iterations: iterations,
		Converged:  converged(norm, x, s.Tolerance),
	}
}

func converged(norm float64, x []float64, tol float64) bool {
	return norm <= tol*(1+infNorm(x))
}

func infNorm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// usable accepts an ill-conditioned but non-singular solve.
func usable(err error) bool {
	var cond mat.Condition
	if errors.As(err, &cond) {
		return !math.IsInf(float64(cond), 1)
	}
	return false
}
