package causal_test

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/blocksim/internal/blocks"
	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/dynamo"
	"github.com/san-kum/blocksim/internal/signals"
)

func variable(name string) *dynamo.Variable {
	return dynamo.NewVariable(name, name, 0)
}

func mustODE(in, out *dynamo.Variable, num, den []float64) dynamo.Block {
	o, err := blocks.NewODE(in, out, num, den)
	Expect(err).NotTo(HaveOccurred())
	return o
}

// executesInOrder replays a plan and checks that no explicit equation reads
// a variable that is neither a signal nor already produced.
func executesInOrder(plan *causal.Plan) bool {
	known := make(map[*dynamo.Variable]bool)
	for _, step := range plan.Steps {
		if step.Implicit {
			for _, eq := range step.Equations {
				known[eq.Variable()] = true
			}
		}
		for _, eq := range step.Equations {
			for _, in := range eq.Block.Inputs() {
				if !in.IsSignal() && !known[in] {
					return false
				}
			}
		}
		for _, eq := range step.Equations {
			known[eq.Variable()] = true
		}
	}
	return true
}

var _ = Describe("BuildGraph", func() {
	It("creates one equation per block output", func() {
		u1, u2 := signals.Step("u1", "", 1, 0, 0), signals.Step("u2", "", 1, 0, 0)
		y1, y2 := variable("y1"), variable("y2")
		g, err := blocks.NewMatrixGain([]*dynamo.Variable{u1, u2}, []*dynamo.Variable{y1, y2}, mat.NewDense(2, 2, nil))
		Expect(err).NotTo(HaveOccurred())

		graph, err := causal.BuildGraph([]dynamo.Block{g})
		Expect(err).NotTo(HaveOccurred())
		Expect(graph.NumEquations()).To(Equal(2))
		Expect(graph.NumVariables()).To(Equal(4))

		eq, ok := graph.Producer(y2)
		Expect(ok).To(BeTrue())
		Expect(eq.Output).To(Equal(1))
		_, ok = graph.Producer(u1)
		Expect(ok).To(BeFalse())
	})

	It("rejects a second writer", func() {
		u, y := signals.Step("u", "", 1, 0, 0), variable("y")
		_, err := causal.BuildGraph([]dynamo.Block{
			blocks.NewGain(u, y, 1, 0),
			blocks.NewGain(u, y, 2, 0),
		})
		Expect(err).To(MatchError(dynamo.ErrDuplicateWriter))
		Expect(err).To(MatchError(dynamo.ErrOverconstrained))
		Expect(err.Error()).To(ContainSubstring("gain:y"))
	})

	It("rejects a block writing a signal", func() {
		u, s := variable("u"), signals.Step("s", "", 1, 0, 0)
		_, err := causal.BuildGraph([]dynamo.Block{blocks.NewGain(u, s, 1, 0)})
		Expect(err).To(MatchError(dynamo.ErrOverconstrained))
	})
})

var _ = Describe("Plan", func() {
	It("orders a chain whatever the block order", func() {
		u := signals.Ramp("u", "", 1, 0, 0)
		a, b, c := variable("a"), variable("b"), variable("c")
		chain := []dynamo.Block{
			blocks.NewGain(b, c, 2, 0),
			blocks.NewGain(a, b, 2, 0),
			blocks.NewGain(u, a, 2, 0),
		}

		graph, err := causal.BuildGraph(chain)
		Expect(err).NotTo(HaveOccurred())
		plan, err := graph.Plan([]*dynamo.Variable{c})
		Expect(err).NotTo(HaveOccurred())

		Expect(plan.Steps).To(HaveLen(3))
		Expect(plan.NumImplicit()).To(Equal(0))
		Expect(plan.Steps[0].Equations[0].Variable()).To(BeIdenticalTo(a))
		Expect(plan.Steps[1].Equations[0].Variable()).To(BeIdenticalTo(b))
		Expect(plan.Steps[2].Equations[0].Variable()).To(BeIdenticalTo(c))
	})

	It("prunes equations the targets do not need", func() {
		u := signals.Step("u", "", 1, 0, 0)
		a, unused := variable("a"), variable("unused")
		graph, err := causal.BuildGraph([]dynamo.Block{
			blocks.NewGain(u, a, 1, 0),
			blocks.NewGain(a, unused, 1, 0),
		})
		Expect(err).NotTo(HaveOccurred())

		plan, err := graph.Plan([]*dynamo.Variable{a})
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.NumEquations()).To(Equal(1))
	})

	It("isolates an algebraic loop as one implicit group", func() {
		c := signals.Step("c", "", 1, 0, 0)
		x, y, z := variable("x"), variable("y"), variable("z")
		graph, err := causal.BuildGraph([]dynamo.Block{
			blocks.NewGain(x, z, 1, 0),
			blocks.NewSubtraction(c, y, x),
			blocks.NewGain(x, y, 0.5, 0),
		})
		Expect(err).NotTo(HaveOccurred())

		plan, err := graph.Plan([]*dynamo.Variable{z})
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Steps).To(HaveLen(2))
		Expect(plan.Steps[0].Implicit).To(BeTrue())
		Expect(plan.Steps[0].Equations).To(HaveLen(2))
		Expect(plan.Steps[1].Implicit).To(BeFalse())
		Expect(plan.Steps[1].Equations[0].Variable()).To(BeIdenticalTo(z))
		Expect(plan.String()).To(ContainSubstring("implicit{"))
	})

	It("treats a block reading its own output as implicit", func() {
		x := variable("x")
		graph, err := causal.BuildGraph([]dynamo.Block{blocks.NewFunction(x, x, func(v float64) float64 { return v / 2 })})
		Expect(err).NotTo(HaveOccurred())

		plan, err := graph.Plan([]*dynamo.Variable{x})
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Steps).To(HaveLen(1))
		Expect(plan.Steps[0].Implicit).To(BeTrue())
	})

	It("does not couple equations through signals", func() {
		u := signals.Sinus("u", "", 1, 1, 0, 0)
		y := variable("y")
		graph, err := causal.BuildGraph([]dynamo.Block{mustODE(u, y, []float64{1}, []float64{1, 1})})
		Expect(err).NotTo(HaveOccurred())

		plan, err := graph.Plan([]*dynamo.Variable{y, u})
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Steps).To(HaveLen(1))
		Expect(plan.Steps[0].Implicit).To(BeFalse())
	})

	It("reports variables no equation defines", func() {
		free, y, orphan := variable("free"), variable("y"), variable("orphan")
		graph, err := causal.BuildGraph([]dynamo.Block{
			blocks.NewGain(free, y, 1, 0),
			blocks.NewGain(y, orphan, 1, 0),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = graph.Plan([]*dynamo.Variable{y})
		Expect(err).To(MatchError(dynamo.ErrUnderconstrained))
		var me *dynamo.ModelError
		Expect(errors.As(err, &me)).To(BeTrue())
		Expect(me.Variables).To(ConsistOf("free"))

		_, err = graph.Plan([]*dynamo.Variable{free})
		Expect(err).To(MatchError(dynamo.ErrUnderconstrained))
	})

	It("rejects targets outside the model", func() {
		u, y := signals.Step("u", "", 1, 0, 0), variable("y")
		graph, err := causal.BuildGraph([]dynamo.Block{blocks.NewGain(u, y, 1, 0)})
		Expect(err).NotTo(HaveOccurred())

		_, err = graph.Plan([]*dynamo.Variable{variable("stranger")})
		Expect(err).To(MatchError(dynamo.ErrOverconstrained))
	})

	It("is deterministic", func() {
		u := signals.Step("u", "", 1, 0, 0)
		vars := []*dynamo.Variable{variable("a"), variable("b"), variable("c"), variable("d")}
		diagram := []dynamo.Block{
			blocks.NewGain(u, vars[0], 1, 0),
			blocks.NewGain(u, vars[1], 1, 0),
			blocks.NewSum([]*dynamo.Variable{vars[0], vars[1]}, vars[2]),
			blocks.NewGain(u, vars[3], 1, 0),
		}
		graph, err := causal.BuildGraph(diagram)
		Expect(err).NotTo(HaveOccurred())

		first, err := graph.Plan(vars)
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 20; i++ {
			again, err := graph.Plan(vars)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.String()).To(Equal(first.String()))
		}
	})

	It("never reads a variable before it is produced in random acyclic diagrams", func() {
		rng := rand.New(rand.NewSource(7))
		for trial := 0; trial < 50; trial++ {
			n := 2 + rng.Intn(12)
			u := signals.Step("u", "", 1, 0, 0)
			vars := make([]*dynamo.Variable, n)
			for i := range vars {
				vars[i] = variable(string(rune('a' + i)))
			}
			diagram := make([]dynamo.Block, 0, n)
			for i := range vars {
				inputs := []*dynamo.Variable{u}
				for j := 0; j < i; j++ {
					if rng.Intn(3) == 0 {
						inputs = append(inputs, vars[j])
					}
				}
				diagram = append(diagram, blocks.NewSum(inputs, vars[i]))
			}
			rng.Shuffle(len(diagram), func(i, j int) { diagram[i], diagram[j] = diagram[j], diagram[i] })

			graph, err := causal.BuildGraph(diagram)
			Expect(err).NotTo(HaveOccurred())
			plan, err := graph.Plan(vars)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan.NumImplicit()).To(Equal(0))
			Expect(plan.NumEquations()).To(Equal(n))
			Expect(executesInOrder(plan)).To(BeTrue(), plan.String())
		}
	})
})
