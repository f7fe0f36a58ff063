// Package dynamo provides the data model of a block-diagram simulation.
//
// The package defines the values that the causal planner and the simulation
// loop operate on:
//
//   - [Variable]: named time-series with a history margin and an initial condition
//   - [Signal]: a Variable generated from a closed-form function of time
//   - [Block]: a computation unit that declares inputs, outputs and history depth
//   - [Base]: embeddable implementation of the declaration half of [Block]
//
// # Example
//
//	u := signals.Step("input", "u", 1, 0, 0)
//	y := dynamo.NewVariable("output", "y", 0)
//	b, _ := blocks.NewODE(u, y, []float64{1}, []float64{1, 2})
//	m, _ := sim.New(10, 1000)
//	_ = m.AddBlock(b)
//	report, err := m.Simulate()
//
// # Buffers
//
// A Variable owns a buffer of steps+1+margin samples. Blocks address it with
// raw buffer indices; consumers read [Variable.Values], which hides the margin.
//
// # Thread Safety
//
// Variables and blocks are owned by a single model and a single run at a
// time. They are NOT safe for concurrent simulation.
package dynamo
