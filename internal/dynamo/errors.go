package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for model construction and simulation.
var (
	// ErrDuplicateWriter indicates two equations write the same variable.
	ErrDuplicateWriter = errors.New("dynamo: variable has more than one writer")

	// ErrUnderconstrained indicates a required variable has no producing equation.
	ErrUnderconstrained = errors.New("dynamo: underconstrained model")

	// ErrOverconstrained indicates a variable is determined more than once
	// or a requested variable cannot be produced by the model.
	ErrOverconstrained = errors.New("dynamo: overconstrained model")

	// ErrNonCausal indicates a transfer function whose current output
	// coefficient vanishes.
	ErrNonCausal = errors.New("dynamo: non-causal transfer function")

	// ErrConvergence indicates an implicit group did not converge.
	ErrConvergence = errors.New("dynamo: implicit group did not converge")

	// ErrTypeMismatch indicates a value that does not honour the Block contract.
	ErrTypeMismatch = errors.New("dynamo: value does not conform to block contract")

	// ErrOutOfRange indicates a time outside the simulated interval.
	ErrOutOfRange = errors.New("dynamo: time out of simulated range")

	// ErrInvalidConfig indicates invalid simulation parameters.
	ErrInvalidConfig = errors.New("dynamo: invalid simulation parameters")
)

// ModelError wraps a structural error with the offending wiring.
type ModelError struct {
	Kind      error
	Variables []string
	Blocks    []string
	Detail    string
}

func (e *ModelError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.Variables) > 0 {
		fmt.Fprintf(&sb, " (variables: %s)", strings.Join(e.Variables, ", "))
	}
	if len(e.Blocks) > 0 {
		fmt.Fprintf(&sb, " (blocks: %s)", strings.Join(e.Blocks, ", "))
	}
	return sb.String()
}

// Is reports a duplicate writer as an overconstrained model too.
func (e *ModelError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrDuplicateWriter && target == ErrOverconstrained
}

func (e *ModelError) Unwrap() error {
	return e.Kind
}

// ConvergenceError records an implicit group that missed the solver tolerance
// at one time index. The buffers keep the best estimate found.
type ConvergenceError struct {
	Step       int
	Time       float64
	Equations  []string
	Residual   float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s after %d iterations, residual %.3g [%s]",
		e.Step, e.Time, ErrConvergence.Error(), e.Iterations, e.Residual, strings.Join(e.Equations, ", "))
}

func (e *ConvergenceError) Unwrap() error {
	return ErrConvergence
}
