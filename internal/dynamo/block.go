package dynamo

import "fmt"

// Block is a computation unit of the diagram. Each output is an equation
// that the planner assigns independently.
//
// Evaluate receives a raw buffer index and the step size. It must be pure
// given the buffers it reads and returns one value per output.
type Block interface {
	Name() string
	Inputs() []*Variable
	Outputs() []*Variable
	// MaxInputOrder is the number of input samples read, current included.
	MaxInputOrder() int
	// MaxOutputOrder is the number of past samples of its own outputs read.
	MaxOutputOrder() int
	Evaluate(it int, dt float64) []float64
}

// Preparer is implemented by blocks that precompute step-dependent data.
// Prepare runs once per simulation, before any buffer is touched.
type Preparer interface {
	Prepare(dt float64) error
}

// Base implements the declaration half of Block. Concrete blocks embed it
// and add Evaluate.
type Base struct {
	name    string
	inputs  []*Variable
	outputs []*Variable
	maxIn   int
	maxOut  int
}

func NewBase(name string, inputs, outputs []*Variable, maxInputOrder, maxOutputOrder int) Base {
	return Base{
		name:    name,
		inputs:  inputs,
		outputs: outputs,
		maxIn:   maxInputOrder,
		maxOut:  maxOutputOrder,
	}
}

func (b Base) Name() string {
	return b.name
}

func (b Base) Inputs() []*Variable {
	return b.inputs
}

func (b Base) Outputs() []*Variable {
	return b.outputs
}

func (b Base) MaxInputOrder() int {
	return b.maxIn
}

func (b Base) MaxOutputOrder() int {
	return b.maxOut
}

// InputValues returns, per input, the MaxInputOrder samples ending at it.
func (b Base) InputValues(it int) [][]float64 {
	values := make([][]float64, len(b.inputs))
	for i, v := range b.inputs {
		values[i] = v.Window(it, b.maxIn)
	}
	return values
}

// InputsAt returns the current sample of every input.
func (b Base) InputsAt(it int) []float64 {
	values := make([]float64, len(b.inputs))
	for i, v := range b.inputs {
		values[i] = v.At(it)
	}
	return values
}

// OutputValues returns, per output, the MaxOutputOrder samples before it.
func (b Base) OutputValues(it int) [][]float64 {
	values := make([][]float64, len(b.outputs))
	for i, v := range b.outputs {
		values[i] = v.Past(it, b.maxOut)
	}
	return values
}

// Validate checks that b honours the Block contract.
func Validate(b Block) error {
	if b == nil {
		return &ModelError{Kind: ErrTypeMismatch, Detail: "nil block"}
	}
	fail := func(format string, args ...any) error {
		return &ModelError{Kind: ErrTypeMismatch, Blocks: []string{b.Name()}, Detail: fmt.Sprintf(format, args...)}
	}
	if len(b.Outputs()) == 0 {
		return fail("block declares no output")
	}
	for i, v := range b.Inputs() {
		if v == nil {
			return fail("input %d is nil", i)
		}
	}
	for i, v := range b.Outputs() {
		if v == nil {
			return fail("output %d is nil", i)
		}
	}
	if b.MaxInputOrder() < 1 {
		return fail("max input order %d < 1", b.MaxInputOrder())
	}
	if b.MaxOutputOrder() < 0 {
		return fail("max output order %d < 0", b.MaxOutputOrder())
	}
	return nil
}
