package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/blocksim/internal/blocks"
	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/signals"
)

func mustODE(t *testing.T, in, out *dynamo.Variable, num, den []float64) *blocks.ODE {
	t.Helper()
	o, err := blocks.NewODE(in, out, num, den)
	if err != nil {
		t.Fatalf("ode: %v", err)
	}
	return o
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		te   float64
		ns   int
	}{
		{"zero end", 0, 10},
		{"negative end", -1, 10},
		{"zero steps", 1, 0},
		{"negative steps", 1, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.te, tt.ns); !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestAddBlockTypeMismatch(t *testing.T) {
	m, _ := New(1, 10)
	if err := m.AddBlock(nil); !errors.Is(err, dynamo.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for nil block, got %v", err)
	}
	if err := m.AddBlock(blocks.NewSum(nil, nil)); !errors.Is(err, dynamo.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch for nil output, got %v", err)
	}
	if len(m.Blocks()) != 0 {
		t.Errorf("rejected blocks were registered: %d", len(m.Blocks()))
	}
}

func TestSingleWriter(t *testing.T) {
	u := signals.Step("u", "u", 1, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, err := New(1, 10, blocks.NewGain(u, y, 1, 0), blocks.NewGain(u, y, 2, 0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = m.Simulate(context.Background())
	if !errors.Is(err, dynamo.ErrOverconstrained) {
		t.Errorf("expected ErrOverconstrained, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrDuplicateWriter) {
		t.Errorf("expected ErrDuplicateWriter, got %v", err)
	}
	if y.Values() != nil {
		t.Error("buffers were allocated despite a structural error")
	}
}

func TestUnderconstrained(t *testing.T) {
	free := dynamo.NewVariable("free", "f", 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 10, blocks.NewGain(free, y, 2, 0))

	_, err := m.Simulate(context.Background())
	if !errors.Is(err, dynamo.ErrUnderconstrained) {
		t.Fatalf("expected ErrUnderconstrained, got %v", err)
	}
	var me *dynamo.ModelError
	if !errors.As(err, &me) || len(me.Variables) != 1 || me.Variables[0] != "free" {
		t.Errorf("expected error naming 'free', got %v", err)
	}
}

func TestIntegratorExactness(t *testing.T) {
	te, ns := 2.0, 200
	u := signals.Step("input", "u", 1, 0, 0)
	y := dynamo.NewVariable("output", "y", 0)
	m, _ := New(te, ns, mustODE(t, u, y, []float64{1}, []float64{0, 1}))

	report, err := m.Simulate(context.Background())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failures: %v", report.Err())
	}

	dt := m.Dt()
	values := y.Values()
	if len(values) != ns+1 {
		t.Fatalf("len(values) = %d, want %d", len(values), ns+1)
	}
	for n := 1; n <= ns; n++ {
		if math.Abs(values[n]-float64(n)*dt) > 1e-9 {
			t.Fatalf("y[%d] = %v, want %v", n, values[n], float64(n)*dt)
		}
	}
}

func TestDifferentiatorExactness(t *testing.T) {
	slope := 2.5
	u := signals.Ramp("input", "u", slope, 0, 0)
	y := dynamo.NewVariable("output", "y", 0)
	m, _ := New(1, 100, mustODE(t, u, y, []float64{0, 1}, []float64{1}))

	if m.Margin() != 1 {
		t.Errorf("margin = %d, want 1", m.Margin())
	}
	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for n, got := range y.Values()[1:] {
		if math.Abs(got-slope) > 1e-9 {
			t.Fatalf("y[%d] = %v, want %v", n+1, got, slope)
		}
	}
}

func TestAlgebraicLoop(t *testing.T) {
	c := signals.Step("c", "c", 9, 0, 3)
	x := dynamo.NewVariable("x", "x", 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 20, blocks.NewSubtraction(c, y, x), blocks.NewGain(x, y, 0.5, 0))

	plan, err := m.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Steps) != 1 || !plan.Steps[0].Implicit || len(plan.Steps[0].Equations) != 2 {
		t.Fatalf("expected one implicit group of two equations, got:\n%s", plan)
	}

	report, err := m.Simulate(context.Background())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failures: %v", report.Err())
	}
	if report.ImplicitSolves != 20 {
		t.Errorf("implicit solves = %d, want 20", report.ImplicitSolves)
	}

	cv := c.Values()
	for n := 1; n <= 20; n++ {
		xv, yv := x.Values()[n], y.Values()[n]
		if math.Abs(xv-(cv[n]-yv)) > 1e-8 || math.Abs(yv-xv/2) > 1e-8 {
			t.Errorf("step %d: x=%v y=%v do not satisfy the loop with c=%v", n, xv, yv, cv[n])
		}
	}
	if math.Abs(x.Values()[20]-8) > 1e-8 {
		t.Errorf("x = %v, want 8", x.Values()[20])
	}
}

func TestConvergenceFailureIsReported(t *testing.T) {
	// x = y + 1 and y = x have no solution.
	x := dynamo.NewVariable("x", "x", 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 5, blocks.NewGain(y, x, 1, 1), blocks.NewGain(x, y, 1, 0))
	m.SetConfig(Config{Tolerance: 1e-10, MaxIterations: 10})

	report, err := m.Simulate(context.Background())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !report.Failed() {
		t.Fatal("expected convergence failures")
	}
	if report.Steps != 5 {
		t.Errorf("steps = %d, want the run to continue to 5", report.Steps)
	}
	if len(report.Failures) != 5 {
		t.Errorf("failures = %d, want 5", len(report.Failures))
	}
	if !errors.Is(report.Err(), dynamo.ErrConvergence) {
		t.Errorf("expected ErrConvergence, got %v", report.Err())
	}
	if f := report.Failures[0]; f.Step != 1 || len(f.Equations) != 2 {
		t.Errorf("failure context = %+v", f)
	}
}

func TestFirstOrderScenario(t *testing.T) {
	k, tau := 1.0, 1.254
	u := signals.Step("input", "u", 1, 0, 0)
	y := dynamo.NewVariable("output", "y", 0)
	m, _ := New(10, 1000, mustODE(t, u, y, []float64{k}, []float64{1, tau}))

	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}

	values := y.Values()
	start := len(values) - len(values)/10
	for n := start; n < len(values); n++ {
		if values[n] < values[n-1] {
			t.Fatalf("not monotonic at %d: %v < %v", n, values[n], values[n-1])
		}
		if values[n] > k {
			t.Fatalf("overshoot at %d: %v", n, values[n])
		}
		if math.Abs(values[n]-k) > 0.01*k {
			t.Fatalf("y[%d] = %v, not within 1%% of %v", n, values[n], k)
		}
	}
}

func TestFeedbackLoopThroughODE(t *testing.T) {
	// O = Kb/(1+tau p) (Ka*I - Kc*O) settles at Ka*Kb/(1+Kb*Kc) * I.
	ka, kb, kc, tau := 3.0, 4.0, 3.0, 1.0
	in := signals.Step("input", "i", 100, 0, 0)
	ai := dynamo.NewVariable("adapted input", "ai", 0)
	di := dynamo.NewVariable("error", "dI", 0)
	o := dynamo.NewVariable("output", "O", 0)
	f := dynamo.NewVariable("feedback", "F", 0)

	m, _ := New(3, 1000,
		blocks.NewGain(in, ai, ka, 0),
		blocks.NewSubtraction(ai, f, di),
		mustODE(t, di, o, []float64{kb}, []float64{1, tau}),
		blocks.NewGain(o, f, kc, 0),
	)

	plan, err := m.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.NumImplicit() != 1 {
		t.Errorf("implicit groups = %d, want 1:\n%s", plan.NumImplicit(), plan)
	}

	report, err := m.Simulate(context.Background())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failures: %v", report.Err())
	}

	want := ka * kb / (1 + kb*kc) * 100
	if got := o.Values()[1000]; math.Abs(got-want) > 1e-3*want {
		t.Errorf("steady state = %v, want %v", got, want)
	}
}

func TestValueAt(t *testing.T) {
	u := signals.Ramp("ramp", "r", 2, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 10, blocks.NewGain(u, y, 1, 0))
	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}

	tests := []struct {
		t    float64
		want float64
	}{
		{0, 0},
		{0.05, 0.1},
		{0.37, 0.74},
		{1, 2},
	}
	for _, tt := range tests {
		got, err := m.ValueAt(y, tt.t)
		if err != nil {
			t.Fatalf("ValueAt(%v): %v", tt.t, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ValueAt(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}

	for _, bad := range []float64{-0.1, 1.1} {
		if _, err := m.ValueAt(y, bad); !errors.Is(err, dynamo.ErrOutOfRange) {
			t.Errorf("ValueAt(%v): expected ErrOutOfRange, got %v", bad, err)
		}
	}

	values, err := m.ValuesAt([]*dynamo.Variable{u, y}, 0.5)
	if err != nil || len(values) != 2 || math.Abs(values[0]-1) > 1e-9 || math.Abs(values[1]-1) > 1e-9 {
		t.Errorf("ValuesAt = %v, %v", values, err)
	}
}

func TestSimulateTwice(t *testing.T) {
	u := signals.Step("u", "u", 1, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 50, mustODE(t, u, y, []float64{1}, []float64{1, 0.5}))

	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	first := append([]float64(nil), y.Values()...)

	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for i, v := range y.Values() {
		if v != first[i] {
			t.Fatalf("second run differs at %d: %v != %v", i, v, first[i])
		}
	}
}

func TestHiddenVariablesArePruned(t *testing.T) {
	u := signals.Step("u", "u", 1, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	h := dynamo.NewVariable("inner", "h", 0, dynamo.Hidden())
	m, _ := New(1, 10, blocks.NewGain(u, y, 2, 0), blocks.NewGain(u, h, 3, 0))

	plan, err := m.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.NumEquations() != 1 {
		t.Errorf("equations = %d, want 1:\n%s", plan.NumEquations(), plan)
	}

	plan, err = m.Plan(h)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Equations[0].Variable() != h {
		t.Errorf("explicit target plan:\n%s", plan)
	}
}

func TestAddBlockInvalidatesPlan(t *testing.T) {
	u := signals.Step("u", "u", 1, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	z := dynamo.NewVariable("z", "z", 0)
	m, _ := New(1, 10, blocks.NewGain(u, y, 2, 0))

	p1, err := m.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if err := m.AddBlock(blocks.NewGain(y, z, 2, 0)); err != nil {
		t.Fatalf("add block: %v", err)
	}
	p2, err := m.Plan()
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if p1 == p2 || p2.NumEquations() != 2 {
		t.Errorf("plan was not rebuilt: %d equations", p2.NumEquations())
	}
}

type countingObserver struct {
	started  bool
	steps    int
	implicit int
	report   *Report
}

func (c *countingObserver) OnStart(plan *causal.Plan, steps int) { c.started = true }
func (c *countingObserver) OnStep(step int, t float64)           { c.steps++ }
func (c *countingObserver) OnImplicit(s ImplicitSolve)           { c.implicit++ }
func (c *countingObserver) OnFinish(r *Report)                   { c.report = r }

func TestObserver(t *testing.T) {
	c := signals.Step("c", "c", 1, 0, 0)
	x := dynamo.NewVariable("x", "x", 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 8, blocks.NewSubtraction(c, y, x), blocks.NewGain(x, y, 0.5, 0))

	obs := &countingObserver{}
	m.AddObserver(obs)
	if _, err := m.Simulate(context.Background()); err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if !obs.started || obs.steps != 8 || obs.implicit != 8 || obs.report == nil {
		t.Errorf("observer saw started=%v steps=%d implicit=%d report=%v",
			obs.started, obs.steps, obs.implicit, obs.report != nil)
	}
}

func TestSimulateCanceled(t *testing.T) {
	u := signals.Step("u", "u", 1, 0, 0)
	y := dynamo.NewVariable("y", "y", 0)
	m, _ := New(1, 10, blocks.NewGain(u, y, 1, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := m.Simulate(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if report == nil || report.Steps != 0 {
		t.Errorf("expected empty partial report, got %+v", report)
	}
}
