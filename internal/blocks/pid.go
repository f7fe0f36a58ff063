package blocks

import "github.com/san-kum/blocksim/internal/dynamo"

// PID is a discrete proportional-integral-derivative controller in velocity
// form. It reads the error at it, it-1 and it-2 plus its own previous output,
// so it carries no state between evaluations:
//
//	u[k] = u[k-1] + Kp (e[k]-e[k-1]) + Ki dt e[k] + Kd/dt (e[k]-2e[k-1]+e[k-2])
type PID struct {
	dynamo.Base
	Kp float64
	Ki float64
	Kd float64
}

func NewPID(err, out *dynamo.Variable, kp, ki, kd float64) *PID {
	return &PID{
		Base: dynamo.NewBase("pid:"+shortName(out), []*dynamo.Variable{err}, []*dynamo.Variable{out}, 3, 1),
		Kp:   kp,
		Ki:   ki,
		Kd:   kd,
	}
}

func (p *PID) Evaluate(it int, dt float64) []float64 {
	e := p.Inputs()[0].Window(it, 3)
	prev := p.Outputs()[0].At(it - 1)
	u := prev +
		p.Kp*(e[2]-e[1]) +
		p.Ki*dt*e[2] +
		p.Kd/dt*(e[2]-2*e[1]+e[0])
	return []float64{u}
}
