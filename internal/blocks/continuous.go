package blocks

import (
	"fmt"

	"github.com/san-kum/blocksim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Gain computes output = value*input + offset.
type Gain struct {
	dynamo.Base
	Value  float64
	Offset float64
}

func NewGain(in, out *dynamo.Variable, value, offset float64) *Gain {
	return &Gain{
		Base:   dynamo.NewBase("gain:"+shortName(out), []*dynamo.Variable{in}, []*dynamo.Variable{out}, 1, 0),
		Value:  value,
		Offset: offset,
	}
}

func (g *Gain) Evaluate(it int, dt float64) []float64 {
	return []float64{g.Value*g.Inputs()[0].At(it) + g.Offset}
}

// Sum adds its inputs.
type Sum struct {
	dynamo.Base
}

func NewSum(inputs []*dynamo.Variable, out *dynamo.Variable) *Sum {
	return &Sum{Base: dynamo.NewBase("sum:"+shortName(out), inputs, []*dynamo.Variable{out}, 1, 0)}
}

func (s *Sum) Evaluate(it int, dt float64) []float64 {
	total := 0.0
	for _, v := range s.Inputs() {
		total += v.At(it)
	}
	return []float64{total}
}

// WeightedSum computes sum(w_i * input_i) + offset.
type WeightedSum struct {
	dynamo.Base
	Weights []float64
	Offset  float64
}

func NewWeightedSum(inputs []*dynamo.Variable, out *dynamo.Variable, weights []float64, offset float64) (*WeightedSum, error) {
	if len(weights) != len(inputs) {
		return nil, fmt.Errorf("%w: %d weights for %d inputs", dynamo.ErrTypeMismatch, len(weights), len(inputs))
	}
	return &WeightedSum{
		Base:    dynamo.NewBase("wsum:"+shortName(out), inputs, []*dynamo.Variable{out}, 1, 0),
		Weights: append([]float64(nil), weights...),
		Offset:  offset,
	}, nil
}

func (w *WeightedSum) Evaluate(it int, dt float64) []float64 {
	total := w.Offset
	for i, v := range w.Inputs() {
		total += w.Weights[i] * v.At(it)
	}
	return []float64{total}
}

// Subtraction computes output = a - b.
type Subtraction struct {
	dynamo.Base
}

func NewSubtraction(a, b, out *dynamo.Variable) *Subtraction {
	return &Subtraction{Base: dynamo.NewBase("sub:"+shortName(out), []*dynamo.Variable{a, b}, []*dynamo.Variable{out}, 1, 0)}
}

func (s *Subtraction) Evaluate(it int, dt float64) []float64 {
	in := s.Inputs()
	return []float64{in[0].At(it) - in[1].At(it)}
}

// Product computes output = a * b.
type Product struct {
	dynamo.Base
}

func NewProduct(a, b, out *dynamo.Variable) *Product {
	return &Product{Base: dynamo.NewBase("mul:"+shortName(out), []*dynamo.Variable{a, b}, []*dynamo.Variable{out}, 1, 0)}
}

func (p *Product) Evaluate(it int, dt float64) []float64 {
	in := p.Inputs()
	return []float64{in[0].At(it) * in[1].At(it)}
}

// Division computes output = a / b.
type Division struct {
	dynamo.Base
}

func NewDivision(a, b, out *dynamo.Variable) *Division {
	return &Division{Base: dynamo.NewBase("div:"+shortName(out), []*dynamo.Variable{a, b}, []*dynamo.Variable{out}, 1, 0)}
}

func (d *Division) Evaluate(it int, dt float64) []float64 {
	in := d.Inputs()
	return []float64{in[0].At(it) / in[1].At(it)}
}

// Function computes output = f(input).
type Function struct {
	dynamo.Base
	F func(float64) float64
}

func NewFunction(in, out *dynamo.Variable, f func(float64) float64) *Function {
	return &Function{
		Base: dynamo.NewBase("fn:"+shortName(out), []*dynamo.Variable{in}, []*dynamo.Variable{out}, 1, 0),
		F:    f,
	}
}

func (f *Function) Evaluate(it int, dt float64) []float64 {
	return []float64{f.F(f.Inputs()[0].At(it))}
}

// MatrixGain computes outputs = M * inputs. Each row is a separate equation.
type MatrixGain struct {
	dynamo.Base
	M *mat.Dense
}

func NewMatrixGain(inputs, outputs []*dynamo.Variable, m *mat.Dense) (*MatrixGain, error) {
	r, c := m.Dims()
	if r != len(outputs) || c != len(inputs) {
		return nil, fmt.Errorf("%w: %dx%d matrix for %d inputs and %d outputs",
			dynamo.ErrTypeMismatch, r, c, len(inputs), len(outputs))
	}
	name := "matrix"
	if len(outputs) > 0 {
		name += ":" + shortName(outputs[0])
	}
	return &MatrixGain{
		Base: dynamo.NewBase(name, inputs, outputs, 1, 0),
		M:    mat.DenseCopyOf(m),
	}, nil
}

func (g *MatrixGain) Evaluate(it int, dt float64) []float64 {
	u := mat.NewVecDense(len(g.Inputs()), g.InputsAt(it))
	var y mat.VecDense
	y.MulVec(g.M, u)
	return y.RawVector().Data
}

func shortName(v *dynamo.Variable) string {
	if v == nil {
		return "?"
	}
	return v.ShortName
}
