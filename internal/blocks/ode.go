package blocks

import (
	"fmt"

	"github.com/san-kum/blocksim/internal/discretize"
	"github.com/san-kum/blocksim/internal/dynamo"
)

// ODE is a single-input single-output block defined by a transfer function
// H(p) = sum(num[i] p^i) / sum(den[j] p^j), discretized by backward
// differences. It reads len(num) input samples and len(den)-1 past outputs.
type ODE struct {
	dynamo.Base
	tf  *discretize.TransferFunction
	rec discretize.Recurrence
	dt  float64
}

func NewODE(in, out *dynamo.Variable, num, den []float64) (*ODE, error) {
	tf, err := discretize.New(num, den)
	if err != nil {
		return nil, fmt.Errorf("ode %s: %w", shortName(out), err)
	}
	return &ODE{
		Base: dynamo.NewBase("ode:"+shortName(out), []*dynamo.Variable{in}, []*dynamo.Variable{out},
			tf.InputOrder(), tf.OutputOrder()),
		tf: tf,
	}, nil
}

// TransferFunction exposes the continuous-time definition.
func (o *ODE) TransferFunction() *discretize.TransferFunction { return o.tf }

// Prepare resolves the recurrence for dt from the transfer function cache.
func (o *ODE) Prepare(dt float64) error {
	rec, err := o.tf.Coefficients(dt)
	if err != nil {
		return fmt.Errorf("%s: %w", o.Name(), err)
	}
	o.rec, o.dt = rec, dt
	return nil
}

func (o *ODE) Evaluate(it int, dt float64) []float64 {
	if dt != o.dt {
		if err := o.Prepare(dt); err != nil {
			panic(err)
		}
	}
	in := o.Inputs()[0].Window(it, o.MaxInputOrder())
	var past []float64
	if n := o.MaxOutputOrder(); n > 0 {
		past = o.Outputs()[0].Past(it, n)
	}
	return []float64{o.rec.Step(in, past)}
}
