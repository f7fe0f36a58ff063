package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/blocksim/internal/analysis"
	"github.com/san-kum/blocksim/internal/optim"
	"github.com/san-kum/blocksim/internal/storage"
	"github.com/san-kum/blocksim/internal/viz"
)

var (
	analyzeVar   string
	settleBand   float64
	gridFlags    []string
	sweepMetric  string
	sweepWorkers int
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and step response analysis of a variable",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	cmd.Flags().StringVar(&analyzeVar, "var", "", "variable to analyze (default: last recorded)")
	cmd.Flags().Float64Var(&settleBand, "band", 0.02, "settling band relative to the final value")
	return cmd
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a model over a grid of parameter values",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepModel,
	}
	addModelFlags(cmd)
	cmd.Flags().StringArrayVar(&gridFlags, "grid", nil, "parameter values (name=v1,v2,...), repeatable")
	cmd.Flags().StringVar(&sweepMetric, "metric", "newton_iterations_total", "metric to minimise")
	cmd.Flags().IntVar(&sweepWorkers, "workers", 0, "concurrent runs (default: number of CPUs)")
	return cmd
}

func findSeries(series []storage.Series, name string) (storage.Series, error) {
	if len(series) == 0 {
		return storage.Series{}, fmt.Errorf("no data")
	}
	if name == "" {
		return series[len(series)-1], nil
	}
	for _, s := range series {
		if s.Name == name {
			return s, nil
		}
	}
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Name
	}
	return storage.Series{}, fmt.Errorf("unknown variable: %s (available: %v)", name, names)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}
	s, err := findSeries(rec.Series, analyzeVar)
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n", rec.Meta.ID)
	fmt.Printf("model: %s, variable: %s\n\n", rec.Meta.Model, s.Name)

	final, settling := analysis.Settle(rec.Times, s.Values, settleBand)
	fmt.Printf("final value: %.6g\n", final)
	fmt.Printf("settling time (%g%%): %.4gs\n\n", settleBand*100, settling)

	ps, err := analysis.PowerSpectrum(s.Values, rec.Meta.Dt)
	if err != nil {
		return err
	}
	shown := min(max(len(ps.Power)/4, 2), len(ps.Power))
	fmt.Println(viz.Chart("amplitude spectrum ("+s.Name+")", ps.Power[:shown], 80, 15))
	fmt.Println()

	freq, amp := ps.Dominant()
	fmt.Printf("dominant frequency: %.3f hz (amplitude %.4g)\n", freq, amp)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

// parseGrid turns name=v1,v2 flags into parallel name and value slices.
func parseGrid(grids []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(grids))
	ranges := make([][]float64, 0, len(grids))
	for _, g := range grids {
		name, list, ok := strings.Cut(g, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("grid %q: expected name=v1,v2", g)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %q is not a number", name, f)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func sweepModel(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridFlags)
	if err != nil {
		return err
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	if sweepWorkers > 0 {
		grid.SetWorkers(sweepWorkers)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	points := grid.Run(ctx, cfg)
	best, found := optim.Best(points, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for _, p := range points {
		cols := make([]string, len(names))
		for i, n := range names {
			cols[i] = strconv.FormatFloat(p.Params[n], 'g', -1, 64)
		}
		result := "error: " + fmt.Sprint(p.Err)
		if p.Err == nil {
			result = strconv.FormatFloat(p.Metrics[sweepMetric], 'g', 6, 64)
		}
		mark := ""
		if found && samePoint(p.Params, best.Params) {
			mark = viz.StatusOK.Render("best")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(cols, "\t"), result, mark)
	}
	return w.Flush()
}

func samePoint(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for _, k := range optim.ParamNames(a) {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
