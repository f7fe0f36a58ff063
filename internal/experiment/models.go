package experiment

import (
	"github.com/san-kum/blocksim/internal/blocks"
	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/signals"
	"github.com/san-kum/blocksim/internal/sim"
)

func vars(vs ...*dynamo.Variable) []*dynamo.Variable { return vs }

func newSetup(cfg *config.Config, shown []*dynamo.Variable, bs ...dynamo.Block) (*Setup, error) {
	m, err := sim.New(cfg.Duration, cfg.Steps, bs...)
	if err != nil {
		return nil, err
	}
	return &Setup{Model: m, Variables: shown}, nil
}

func firstOrder(cfg *config.Config) (*Setup, error) {
	e := signals.Ramp("input", "e", cfg.Param("slope", 1), 0, 0)
	s := dynamo.NewVariable("output", "s", 0)
	ode, err := blocks.NewODE(e, s, []float64{cfg.Param("k", 1)}, []float64{1, cfg.Param("tau", 1.254)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(e, s), ode)
}

func integrator(cfg *config.Config) (*Setup, error) {
	u := signals.Step("input", "u", cfg.Param("amplitude", 1), cfg.Param("delay", 0), 0)
	y := dynamo.NewVariable("output", "y", 0)
	ode, err := blocks.NewODE(u, y, []float64{cfg.Param("k", 1)}, []float64{0, 1})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(u, y), ode)
}

func differentiator(cfg *config.Config) (*Setup, error) {
	u := signals.Ramp("input", "u", cfg.Param("slope", 1), 0, 0)
	y := dynamo.NewVariable("derivative", "y", 0)
	ode, err := blocks.NewODE(u, y, []float64{0, 1}, []float64{1})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(u, y), ode)
}

func secondOrder(cfg *config.Config) (*Setup, error) {
	q, w0 := cfg.Param("q", 0.3), cfg.Param("w0", 3)
	e := signals.Sinus("input", "e", cfg.Param("amplitude", 4), cfg.Param("w", 5), 0, 0)
	s := dynamo.NewVariable("output", "s", 0)
	ode, err := blocks.NewODE(e, s, []float64{cfg.Param("k", 1)}, []float64{1, 2 * q / w0, 1 / (w0 * w0)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(e, s), ode)
}

func feedbackLoop(cfg *config.Config) (*Setup, error) {
	in := signals.Step("input", "i", cfg.Param("input", 100), 0, 0)
	ai := dynamo.NewVariable("adapted input", "ai", 0)
	di := dynamo.NewVariable("error", "dI", 0)
	out := dynamo.NewVariable("output", "O", 0)
	fb := dynamo.NewVariable("feedback", "F", 0)

	plant, err := blocks.NewODE(di, out, []float64{cfg.Param("kb", 4)}, []float64{1, cfg.Param("tau", 1)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(in, out, di, fb),
		blocks.NewGain(in, ai, cfg.Param("ka", 3), 0),
		blocks.NewSubtraction(ai, fb, di),
		plant,
		blocks.NewGain(out, fb, cfg.Param("kc", 3), 0),
	)
}

func algebraicLoop(cfg *config.Config) (*Setup, error) {
	u := signals.Step("input", "u", cfg.Param("amplitude", 4), 0, 0)
	x := dynamo.NewVariable("state", "x", 0)
	h := dynamo.NewVariable("fed back", "h", 0, dynamo.Hidden())
	return newSetup(cfg, vars(u, x),
		blocks.NewGain(x, h, cfg.Param("gain", 0.5), 0),
		blocks.NewSum(vars(h, u), x),
	)
}

func saturatedLoop(cfg *config.Config) (*Setup, error) {
	limit := cfg.Param("limit", 5)
	sp := signals.Step("setpoint", "sp", cfg.Param("setpoint", 10), 0, 0)
	e := dynamo.NewVariable("error", "e", 0)
	c := dynamo.NewVariable("command", "c", 0)
	a := dynamo.NewVariable("actuator", "a", 0)
	y := dynamo.NewVariable("output", "y", 0)

	plant, err := blocks.NewODE(a, y, []float64{1}, []float64{1, cfg.Param("tau", 1)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(sp, y, c, a),
		blocks.NewSubtraction(sp, y, e),
		blocks.NewGain(e, c, cfg.Param("kp", 20), 0),
		blocks.NewSaturation(c, a, -limit, limit),
		plant,
	)
}

func pidLoop(cfg *config.Config) (*Setup, error) {
	sp := signals.Step("setpoint", "sp", cfg.Param("setpoint", 1), 0, 0)
	e := dynamo.NewVariable("error", "e", 0)
	c := dynamo.NewVariable("command", "c", 0)
	y := dynamo.NewVariable("output", "y", 0)

	plant, err := blocks.NewODE(c, y, []float64{cfg.Param("k", 1)}, []float64{1, cfg.Param("tau", 1)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(sp, y, c, e),
		blocks.NewSubtraction(sp, y, e),
		blocks.NewPID(e, c, cfg.Param("kp", 2), cfg.Param("ki", 1), cfg.Param("kd", 0.1)),
		plant,
	)
}

// vanDerPol chains two integrators: x'' = mu (1 - x^2) x' - x.
func vanDerPol(cfg *config.Config) (*Setup, error) {
	x := dynamo.NewVariable("position", "x", cfg.Param("x0", 2))
	v := dynamo.NewVariable("velocity", "v", cfg.Param("v0", 0))
	a := dynamo.NewVariable("acceleration", "a", 0)
	sq := dynamo.NewVariable("x squared", "x2", 0, dynamo.Hidden())
	g := dynamo.NewVariable("damping factor", "g", 0, dynamo.Hidden())
	p := dynamo.NewVariable("damping", "p", 0, dynamo.Hidden())

	accel, err := blocks.NewWeightedSum(vars(p, x), a, []float64{cfg.Param("mu", 1), -1}, 0)
	if err != nil {
		return nil, err
	}
	vInt, err := blocks.NewODE(a, v, []float64{1}, []float64{0, 1})
	if err != nil {
		return nil, err
	}
	xInt, err := blocks.NewODE(v, x, []float64{1}, []float64{0, 1})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(x, v, a),
		blocks.NewProduct(x, x, sq),
		blocks.NewGain(sq, g, -1, 1),
		blocks.NewProduct(g, v, p),
		accel,
		vInt,
		xInt,
	)
}

// rcCircuit is a capacitor C charged from a source U through R:
// i = (U - uc)/R and C duc/dt = i.
func rcCircuit(cfg *config.Config) (*Setup, error) {
	r, c := cfg.Param("r", 10), cfg.Param("c", 0.01)
	u := signals.Step("source voltage", "U", cfg.Param("u", 12), 0, 0)
	ur := dynamo.NewVariable("resistor voltage", "ur", 0)
	i := dynamo.NewVariable("current", "i", 0)
	uc := dynamo.NewVariable("capacitor voltage", "uc", 0)

	capacitor, err := blocks.NewODE(i, uc, []float64{1}, []float64{0, c})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(u, uc, i),
		blocks.NewSubtraction(u, uc, ur),
		blocks.NewGain(ur, i, 1/r, 0),
		capacitor,
	)
}

func frictionBrake(cfg *config.Config) (*Setup, error) {
	cc := signals.Sinus("brake command", "cc", 0.5, cfg.Param("w", 0.1), 0, 0.5)
	in := signals.Step("input torque", "it", cfg.Param("input", 100), 0, 0)
	rt := signals.Step("resistant torque", "rt", cfg.Param("resistant", -80), 0, 0)

	tc := dynamo.NewVariable("brake torque capacity", "Tc", 0)
	bt := dynamo.NewVariable("brake torque", "bt", 0)
	w1 := dynamo.NewVariable("shaft speed", "w1", 0)
	st1 := dynamo.NewVariable("sum of torques", "st1", 0)
	et1 := dynamo.NewVariable("external torques", "et1", 0)

	ext, err := blocks.NewWeightedSum(vars(in, rt), et1, []float64{1, 1}, 0)
	if err != nil {
		return nil, err
	}
	total, err := blocks.NewWeightedSum(vars(in, rt, bt), st1, []float64{1, 1, 1}, 0)
	if err != nil {
		return nil, err
	}
	shaft, err := blocks.NewODE(st1, w1, []float64{1}, []float64{cfg.Param("viscous", 0.01), cfg.Param("inertia", 1)})
	if err != nil {
		return nil, err
	}
	return newSetup(cfg, vars(w1, tc, bt, st1),
		blocks.NewGain(cc, tc, cfg.Param("cmax", 300), 0),
		ext,
		blocks.NewVariableCoulomb(et1, w1, tc, bt, cfg.Param("tolerance", 0.1)),
		shaft,
		total,
	)
}
