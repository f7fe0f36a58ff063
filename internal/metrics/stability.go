package metrics

import (
	"math"

	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/sim"
)

// Stability is the fraction of time steps where every target variable
// stays finite and within Threshold in absolute value.
type Stability struct {
	Threshold float64

	targets    []*dynamo.Variable
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{Threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) OnStart(plan *causal.Plan, steps int) {
	s.targets = plan.Targets
	s.violations = 0
	s.samples = 0
}

func (s *Stability) OnStep(step int, t float64) {
	s.samples++
	for _, v := range s.targets {
		x := v.Values()[step]
		if math.IsNaN(x) || math.Abs(x) > s.Threshold {
			s.violations++
			return
		}
	}
}

func (s *Stability) OnImplicit(sim.ImplicitSolve) {}
func (s *Stability) OnFinish(*sim.Report)         {}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}
