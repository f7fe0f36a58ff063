// Package causal assigns causality to a block diagram.
//
// The graph is bipartite: variable nodes and equation nodes, one equation
// per (block, output) pair. A non-signal input points at every equation of
// its block and every equation points at the variable it defines. Strongly
// connected components of that graph are the algebraic loops of the model.
//
// Nodes live in an arena indexed by their gonum node ID.
package causal

import (
	"fmt"

	"github.com/san-kum/blocksim/internal/dynamo"
	"gonum.org/v1/gonum/graph/simple"
)

// Equation is one output of a block: the unit of causal assignment.
type Equation struct {
	Block  dynamo.Block
	Output int
}

// Variable returns the variable this equation defines.
func (e Equation) Variable() *dynamo.Variable {
	return e.Block.Outputs()[e.Output]
}

func (e Equation) String() string {
	return fmt.Sprintf("%s[%d] -> %s", e.Block.Name(), e.Output, e.Variable().ShortName)
}

type node struct {
	variable *dynamo.Variable
	equation *Equation
}

// Graph is the variable/equation dependency graph of a set of blocks.
type Graph struct {
	g        *simple.DirectedGraph
	nodes    []node
	varIDs   map[*dynamo.Variable]int64
	producer map[int64]int64
}

// BuildGraph wires blocks into a dependency graph. It fails when a variable
// is claimed by two equations or when a block writes a signal.
func BuildGraph(blocks []dynamo.Block) (*Graph, error) {
	gr := &Graph{
		g:        simple.NewDirectedGraph(),
		varIDs:   make(map[*dynamo.Variable]int64),
		producer: make(map[int64]int64),
	}

	equations := make([][]int64, len(blocks))
	for i, b := range blocks {
		if err := dynamo.Validate(b); err != nil {
			return nil, err
		}
		for _, v := range b.Inputs() {
			gr.variableNode(v)
		}
		for out, v := range b.Outputs() {
			vid := gr.variableNode(v)
			if v.IsSignal() {
				return nil, &dynamo.ModelError{
					Kind:      dynamo.ErrOverconstrained,
					Variables: []string{v.Name},
					Blocks:    []string{b.Name()},
					Detail:    "signal written by a block",
				}
			}
			if prev, ok := gr.producer[vid]; ok {
				return nil, &dynamo.ModelError{
					Kind:      dynamo.ErrDuplicateWriter,
					Variables: []string{v.Name},
					Blocks:    []string{gr.nodes[prev].equation.Block.Name(), b.Name()},
				}
			}
			eid := gr.add(node{equation: &Equation{Block: b, Output: out}})
			gr.g.SetEdge(gr.g.NewEdge(simple.Node(eid), simple.Node(vid)))
			gr.producer[vid] = eid
			equations[i] = append(equations[i], eid)
		}
	}

	for i, b := range blocks {
		for _, v := range b.Inputs() {
			if v.IsSignal() {
				continue
			}
			vid := gr.varIDs[v]
			for _, eid := range equations[i] {
				gr.g.SetEdge(gr.g.NewEdge(simple.Node(vid), simple.Node(eid)))
			}
		}
	}

	return gr, nil
}

func (gr *Graph) add(n node) int64 {
	id := int64(len(gr.nodes))
	gr.nodes = append(gr.nodes, n)
	gr.g.AddNode(simple.Node(id))
	return id
}

func (gr *Graph) variableNode(v *dynamo.Variable) int64 {
	if id, ok := gr.varIDs[v]; ok {
		return id
	}
	id := gr.add(node{variable: v})
	gr.varIDs[v] = id
	return id
}

// NumVariables counts variable nodes, signals included.
func (gr *Graph) NumVariables() int { return len(gr.varIDs) }

// NumEquations counts equation nodes.
func (gr *Graph) NumEquations() int { return len(gr.nodes) - len(gr.varIDs) }

// Producer returns the equation defining v, if any.
func (gr *Graph) Producer(v *dynamo.Variable) (Equation, bool) {
	vid, ok := gr.varIDs[v]
	if !ok {
		return Equation{}, false
	}
	eid, ok := gr.producer[vid]
	if !ok {
		return Equation{}, false
	}
	return *gr.nodes[eid].equation, true
}
