package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/sim"
)

// Setup is a built model together with the variables worth showing.
type Setup struct {
	Model     *sim.Model
	Variables []*dynamo.Variable
}

// Factory builds a model from the parameters of cfg.
type Factory func(cfg *config.Config) (*Setup, error)

type entry struct {
	description string
	build       Factory
}

type Registry struct {
	models map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]entry)}

	r.Register("first_order", "ramp through K/(1+tau*s)", firstOrder)
	r.Register("integrator", "step through K/s", integrator)
	r.Register("differentiator", "ramp through s", differentiator)
	r.Register("second_order", "sinus through 1/(1+2Q/w0*s+s^2/w0^2)", secondOrder)
	r.Register("feedback_loop", "first order plant under proportional feedback", feedbackLoop)
	r.Register("algebraic_loop", "x = gain*x + u, solved implicitly", algebraicLoop)
	r.Register("saturated_loop", "feedback loop with a saturated actuator", saturatedLoop)
	r.Register("pid_loop", "first order plant under discrete PID control", pidLoop)
	r.Register("van_der_pol", "Van der Pol oscillator from two integrators", vanDerPol)
	r.Register("rc_circuit", "capacitor charged through a resistor", rcCircuit)
	r.Register("friction_brake", "shaft slowed by a commanded Coulomb brake", frictionBrake)

	return r
}

func (r *Registry) Register(name, description string, f Factory) {
	r.models[name] = entry{description: description, build: f}
}

// Build constructs the named model and applies the solver settings of cfg.
func (r *Registry) Build(name string, cfg *config.Config) (*Setup, error) {
	e, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	setup, err := e.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	setup.Model.SetConfig(sim.Config{
		Tolerance:     cfg.Solver.Tolerance,
		MaxIterations: cfg.Solver.MaxIterations,
	})
	return setup, nil
}

func (r *Registry) Describe(name string) string {
	return r.models[name].description
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
