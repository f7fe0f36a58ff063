package causal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/blocksim/internal/dynamo"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Step is either one explicit equation or an implicit group of equations
// that must be solved simultaneously.
type Step struct {
	Equations []Equation
	Implicit  bool
}

func (s Step) String() string {
	names := make([]string, len(s.Equations))
	for i, eq := range s.Equations {
		names[i] = eq.String()
	}
	if s.Implicit {
		return fmt.Sprintf("implicit{%s}", strings.Join(names, "; "))
	}
	return names[0]
}

// Plan is the ordered list of steps executed at every time index.
type Plan struct {
	Steps   []Step
	Targets []*dynamo.Variable
}

// NumEquations counts the equations evaluated per time index.
func (p *Plan) NumEquations() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Equations)
	}
	return n
}

// NumImplicit counts implicit groups.
func (p *Plan) NumImplicit() int {
	n := 0
	for _, s := range p.Steps {
		if s.Implicit {
			n++
		}
	}
	return n
}

func (p *Plan) String() string {
	var sb strings.Builder
	for i, s := range p.Steps {
		fmt.Fprintf(&sb, "%3d  %s\n", i+1, s)
	}
	return sb.String()
}

// Plan orders the equations needed to compute targets. Components of the
// condensation that are not ancestors of a target are pruned.
func (gr *Graph) Plan(targets []*dynamo.Variable) (*Plan, error) {
	var unknown []string
	targetIDs := make([]int64, 0, len(targets))
	for _, v := range targets {
		id, ok := gr.varIDs[v]
		if !ok {
			unknown = append(unknown, v.Name)
			continue
		}
		targetIDs = append(targetIDs, id)
	}
	if len(unknown) > 0 {
		return nil, &dynamo.ModelError{
			Kind:      dynamo.ErrOverconstrained,
			Variables: unknown,
			Detail:    "requested variables are not produced by any block of the model",
		}
	}

	// Number components by their lowest node ID so the plan does not depend
	// on map iteration order.
	sccs := topo.TarjanSCC(gr.g)
	for _, scc := range sccs {
		byID(scc)
	}
	sort.Slice(sccs, func(i, j int) bool { return sccs[i][0].ID() < sccs[j][0].ID() })
	comp := make([]int64, len(gr.nodes))
	cg := simple.NewDirectedGraph()
	for i, scc := range sccs {
		cg.AddNode(simple.Node(i))
		for _, n := range scc {
			comp[n.ID()] = int64(i)
		}
	}
	edges := gr.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		from, to := comp[e.From().ID()], comp[e.To().ID()]
		if from != to {
			cg.SetEdge(cg.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	needed := make(map[int64]bool)
	queue := make([]int64, 0, len(targetIDs))
	for _, id := range targetIDs {
		c := comp[id]
		if !needed[c] {
			needed[c] = true
			queue = append(queue, c)
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		parents := cg.To(c)
		for parents.Next() {
			p := parents.Node().ID()
			if !needed[p] {
				needed[p] = true
				queue = append(queue, p)
			}
		}
	}

	var missing []string
	for id, n := range gr.nodes {
		if n.variable == nil || n.variable.IsSignal() || !needed[comp[id]] {
			continue
		}
		if _, ok := gr.producer[int64(id)]; !ok {
			missing = append(missing, n.variable.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &dynamo.ModelError{
			Kind:      dynamo.ErrUnderconstrained,
			Variables: missing,
			Detail:    "no equation defines these variables",
		}
	}

	order, err := topo.SortStabilized(cg, byID)
	if err != nil {
		return nil, fmt.Errorf("causal: condensation is not acyclic: %w", err)
	}

	plan := &Plan{Targets: targets}
	for _, c := range order {
		if !needed[c.ID()] {
			continue
		}
		scc := sccs[c.ID()]
		var eqs []Equation
		for _, n := range scc {
			if eq := gr.nodes[n.ID()].equation; eq != nil {
				eqs = append(eqs, *eq)
			}
		}
		if len(eqs) == 0 {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Equations: eqs,
			Implicit:  len(scc) > 1,
		})
	}
	return plan, nil
}

func byID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}
