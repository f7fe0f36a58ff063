package blocks

import (
	"math"

	"github.com/san-kum/blocksim/internal/dynamo"
)

// Saturation clamps its input to [Min, Max].
type Saturation struct {
	dynamo.Base
	Min float64
	Max float64
}

func NewSaturation(in, out *dynamo.Variable, min, max float64) *Saturation {
	return &Saturation{
		Base: dynamo.NewBase("sat:"+shortName(out), []*dynamo.Variable{in}, []*dynamo.Variable{out}, 1, 0),
		Min:  min,
		Max:  max,
	}
}

func (s *Saturation) Evaluate(it int, dt float64) []float64 {
	return []float64{math.Min(math.Max(s.Inputs()[0].At(it), s.Min), s.Max)}
}

// DeadZone outputs zero inside a band of Width centered on zero and the
// input shifted towards zero outside of it.
type DeadZone struct {
	dynamo.Base
	Width float64
}

func NewDeadZone(in, out *dynamo.Variable, width float64) *DeadZone {
	return &DeadZone{
		Base:  dynamo.NewBase("deadzone:"+shortName(out), []*dynamo.Variable{in}, []*dynamo.Variable{out}, 1, 0),
		Width: width,
	}
}

func (d *DeadZone) Evaluate(it int, dt float64) []float64 {
	u := d.Inputs()[0].At(it)
	half := d.Width / 2
	switch {
	case u > half:
		return []float64{u - half}
	case u < -half:
		return []float64{u + half}
	default:
		return []float64{0}
	}
}

// Coulomb is a dry friction force. While sliding (|speed| > Tolerance) it
// opposes the motion with magnitude Max; at rest it balances the applied
// force up to Max.
type Coulomb struct {
	dynamo.Base
	Max       float64
	Tolerance float64
}

func NewCoulomb(force, speed, out *dynamo.Variable, max, tolerance float64) *Coulomb {
	return &Coulomb{
		Base:      dynamo.NewBase("coulomb:"+shortName(out), []*dynamo.Variable{force, speed}, []*dynamo.Variable{out}, 1, 0),
		Max:       max,
		Tolerance: tolerance,
	}
}

func (c *Coulomb) Evaluate(it int, dt float64) []float64 {
	in := c.Inputs()
	return []float64{c.force(in[0].At(it), in[1].At(it))}
}

func (c *Coulomb) force(applied, speed float64) float64 {
	switch {
	case speed > c.Tolerance:
		return -c.Max
	case speed < -c.Tolerance:
		return c.Max
	case math.Abs(applied) < c.Max:
		return -applied
	default:
		return -math.Copysign(c.Max, applied)
	}
}

// VariableCoulomb is a Coulomb friction whose capacity is itself a
// variable, as in a brake driven by a command signal.
type VariableCoulomb struct {
	dynamo.Base
	Tolerance float64
}

func NewVariableCoulomb(force, speed, capacity, out *dynamo.Variable, tolerance float64) *VariableCoulomb {
	return &VariableCoulomb{
		Base:      dynamo.NewBase("coulomb:"+shortName(out), []*dynamo.Variable{force, speed, capacity}, []*dynamo.Variable{out}, 1, 0),
		Tolerance: tolerance,
	}
}

func (c *VariableCoulomb) Evaluate(it int, dt float64) []float64 {
	in := c.Inputs()
	k := Coulomb{Max: math.Abs(in[2].At(it)), Tolerance: c.Tolerance}
	return []float64{k.force(in[0].At(it), in[1].At(it))}
}
