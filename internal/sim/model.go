package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/solver"
)

// Model is a dynamic system built from blocks and simulated with a fixed
// step over [0, End].
type Model struct {
	te float64
	ns int
	dt float64

	blocks    []dynamo.Block
	variables []*dynamo.Variable
	signals   []*dynamo.Variable
	known     map[*dynamo.Variable]bool
	margin    int

	cfg       Config
	observers []Observer

	graph *causal.Graph
	plan  *causal.Plan
}

// New creates a model simulated until te in ns steps.
func New(te float64, ns int, blocks ...dynamo.Block) (*Model, error) {
	if te <= 0 || math.IsNaN(te) || math.IsInf(te, 0) {
		return nil, fmt.Errorf("%w: end time must be positive, got %f", dynamo.ErrInvalidConfig, te)
	}
	if ns <= 0 {
		return nil, fmt.Errorf("%w: step count must be positive, got %d", dynamo.ErrInvalidConfig, ns)
	}
	m := &Model{
		te:    te,
		ns:    ns,
		dt:    te / float64(ns),
		known: make(map[*dynamo.Variable]bool),
		cfg:   DefaultConfig(),
	}
	for _, b := range blocks {
		if err := m.AddBlock(b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddBlock registers b and its variables and invalidates the plan.
func (m *Model) AddBlock(b dynamo.Block) error {
	if err := dynamo.Validate(b); err != nil {
		return err
	}
	m.blocks = append(m.blocks, b)
	m.margin = max(m.margin, b.MaxInputOrder()-1, b.MaxOutputOrder())
	for _, v := range b.Inputs() {
		m.addVariable(v)
	}
	for _, v := range b.Outputs() {
		m.addVariable(v)
	}
	m.graph, m.plan = nil, nil
	return nil
}

func (m *Model) addVariable(v *dynamo.Variable) {
	if m.known[v] {
		return
	}
	m.known[v] = true
	if v.IsSignal() {
		m.signals = append(m.signals, v)
	} else {
		m.variables = append(m.variables, v)
	}
}

func (m *Model) SetConfig(cfg Config)   { m.cfg = cfg }
func (m *Model) AddObserver(o Observer) { m.observers = append(m.observers, o) }

func (m *Model) End() float64 { return m.te }
func (m *Model) Steps() int   { return m.ns }
func (m *Model) Dt() float64  { return m.dt }

// Margin is the global history margin: the deepest past any block reads.
func (m *Model) Margin() int { return m.margin }

func (m *Model) Blocks() []dynamo.Block { return m.blocks }

// Variables returns the non-signal variables in registration order.
func (m *Model) Variables() []*dynamo.Variable { return m.variables }

func (m *Model) Signals() []*dynamo.Variable { return m.signals }

// Times returns the ns+1 sample times.
func (m *Model) Times() []float64 {
	t := make([]float64, m.ns+1)
	for i := range t {
		t[i] = float64(i) * m.dt
	}
	return t
}

// Graph returns the causal graph, rebuilding it after AddBlock.
func (m *Model) Graph() (*causal.Graph, error) {
	if m.graph == nil {
		g, err := causal.BuildGraph(m.blocks)
		if err != nil {
			return nil, err
		}
		m.graph = g
	}
	return m.graph, nil
}

// Plan returns the resolution plan for targets, or for every visible
// variable when none are given. The default plan is cached.
func (m *Model) Plan(targets ...*dynamo.Variable) (*causal.Plan, error) {
	g, err := m.Graph()
	if err != nil {
		return nil, err
	}
	if len(targets) > 0 {
		return g.Plan(targets)
	}
	if m.plan == nil {
		p, err := g.Plan(m.defaultTargets())
		if err != nil {
			return nil, err
		}
		m.plan = p
	}
	return m.plan, nil
}

func (m *Model) defaultTargets() []*dynamo.Variable {
	targets := make([]*dynamo.Variable, 0, len(m.variables))
	for _, v := range m.variables {
		if !v.IsHidden() {
			targets = append(targets, v)
		}
	}
	return targets
}

// Simulate computes targets (every visible variable by default) over the
// whole time range. Structural errors are returned before any buffer is
// touched. Implicit groups that fail to converge are recorded in the
// report and the run continues from the best estimate.
func (m *Model) Simulate(ctx context.Context, targets ...*dynamo.Variable) (*Report, error) {
	plan, err := m.Plan(targets...)
	if err != nil {
		return nil, err
	}
	for _, b := range m.blocks {
		if p, ok := b.(dynamo.Preparer); ok {
			if err := p.Prepare(m.dt); err != nil {
				return nil, err
			}
		}
	}

	for _, v := range m.signals {
		v.Init(m.ns, m.dt, m.margin)
	}
	for _, v := range m.variables {
		v.Init(m.ns, m.dt, m.margin)
	}

	report := &Report{
		Equations:      plan.NumEquations(),
		ImplicitGroups: plan.NumImplicit(),
	}
	for _, o := range m.observers {
		o.OnStart(plan, m.ns)
	}

	settings := solver.Settings{Tolerance: m.cfg.Tolerance, MaxIterations: m.cfg.MaxIterations}
	for n := 1; n <= m.ns; n++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		it := n + m.margin
		t := float64(n) * m.dt
		for _, step := range plan.Steps {
			if !step.Implicit {
				eq := step.Equations[0]
				eq.Variable().Set(it, eq.Block.Evaluate(it, m.dt)[eq.Output])
				continue
			}
			m.solveImplicit(step.Equations, n, it, t, settings, report)
		}
		report.Steps++

		for _, o := range m.observers {
			o.OnStep(n, t)
		}
	}

	for _, o := range m.observers {
		o.OnFinish(report)
	}
	return report, nil
}

// solveImplicit resolves an algebraic loop at raw index it. The residual
// writes candidates straight into the output buffers, so the accepted
// solution is already in place when the solver returns.
func (m *Model) solveImplicit(eqs []causal.Equation, n, it int, t float64, settings solver.Settings, report *Report) {
	x0 := make([]float64, len(eqs))
	for i, eq := range eqs {
		x0[i] = eq.Variable().At(it - 1)
	}

	residual := func(dst, x []float64) {
		for i, eq := range eqs {
			eq.Variable().Set(it, x[i])
		}
		for i, eq := range eqs {
			dst[i] = x[i] - eq.Block.Evaluate(it, m.dt)[eq.Output]
		}
	}
	res := solver.Newton(residual, x0, settings)

	report.ImplicitSolves++
	report.Iterations += res.Iterations
	report.MaxResidual = math.Max(report.MaxResidual, res.Residual)
	if !res.Converged {
		names := make([]string, len(eqs))
		for i, eq := range eqs {
			names[i] = eq.String()
		}
		report.Failures = append(report.Failures, &dynamo.ConvergenceError{
			Step:       n,
			Time:       t,
			Equations:  names,
			Residual:   res.Residual,
			Iterations: res.Iterations,
		})
	}

	for _, o := range m.observers {
		o.OnImplicit(ImplicitSolve{
			Step:       n,
			Time:       t,
			Size:       len(eqs),
			Iterations: res.Iterations,
			Residual:   res.Residual,
			Converged:  res.Converged,
		})
	}
}

// ValueAt interpolates v linearly at time t.
func (m *Model) ValueAt(v *dynamo.Variable, t float64) (float64, error) {
	if t < 0 || t > m.te || math.IsNaN(t) {
		return 0, fmt.Errorf("%w: t=%g not in [0, %g]", dynamo.ErrOutOfRange, t, m.te)
	}
	values := v.Values()
	if len(values) != m.ns+1 {
		return 0, fmt.Errorf("variable %s has not been simulated by this model", v.Name)
	}
	i := int(t / m.dt)
	if i >= m.ns {
		i = m.ns - 1
	}
	frac := (t - float64(i)*m.dt) / m.dt
	return values[i]*(1-frac) + values[i+1]*frac, nil
}

// ValuesAt interpolates each of vs at time t.
func (m *Model) ValuesAt(vs []*dynamo.Variable, t float64) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		x, err := m.ValueAt(v, t)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}
