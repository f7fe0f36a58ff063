package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/blocksim/internal/causal"
	"github.com/san-kum/blocksim/internal/sim"
)

// RenderPlan lists the resolution steps of a plan, implicit groups
// highlighted.
func RenderPlan(plan *causal.Plan) string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(fmt.Sprintf("resolution order: %d equations, %d implicit groups",
		plan.NumEquations(), plan.NumImplicit())))
	sb.WriteString("\n")
	for i, step := range plan.Steps {
		idx := Subtle.Render(fmt.Sprintf("%3d", i+1))
		if step.Implicit {
			sb.WriteString(fmt.Sprintf("%s  %s\n", idx, Implicit.Render("implicit")))
			for _, eq := range step.Equations {
				sb.WriteString(fmt.Sprintf("       %s\n", eq))
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("%s  %s\n", idx, step.Equations[0]))
	}
	return sb.String()
}

// RenderReport summarises a run with a colored status line.
func RenderReport(r *sim.Report) string {
	var sb strings.Builder
	switch {
	case r.Failed():
		sb.WriteString(StatusWarn.Render(fmt.Sprintf("completed with %d convergence failures", len(r.Failures))))
	default:
		sb.WriteString(StatusOK.Render("completed"))
	}
	sb.WriteString("\n")
	rows := [][2]string{
		{"steps", fmt.Sprintf("%d", r.Steps)},
		{"equations", fmt.Sprintf("%d", r.Equations)},
		{"implicit groups", fmt.Sprintf("%d", r.ImplicitGroups)},
		{"implicit solves", fmt.Sprintf("%d", r.ImplicitSolves)},
		{"newton iterations", fmt.Sprintf("%d", r.Iterations)},
		{"max residual", fmt.Sprintf("%.3g", r.MaxResidual)},
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %s %s\n", MetricLabel.Render(fmt.Sprintf("%-18s", row[0])), MetricValue.Render(row[1])))
	}
	for i, f := range r.Failures {
		if i == 5 {
			sb.WriteString(Subtle.Render(fmt.Sprintf("  ... %d more\n", len(r.Failures)-i)))
			break
		}
		sb.WriteString("  " + StatusFail.Render(f.Error()) + "\n")
	}
	return sb.String()
}

// RenderMetrics prints a metrics snapshot sorted by name.
func RenderMetrics(snapshot map[string]float64) string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %s %s\n", MetricLabel.Render(fmt.Sprintf("%-34s", name)), MetricValue.Render(fmt.Sprintf("%.6g", snapshot[name]))))
	}
	return sb.String()
}

// Chart draws values with asciigraph. Non finite samples leave gaps.
func Chart(caption string, values []float64, width, height int) string {
	finite := false
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = true
			break
		}
	}
	if !finite {
		return Subtle.Render(caption + ": no finite samples")
	}

	data := make([]float64, len(values))
	for i, v := range values {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		data[i] = v
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
