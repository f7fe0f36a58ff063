package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/blocksim/internal/config"
	"github.com/san-kum/blocksim/internal/experiment"
	"github.com/san-kum/blocksim/internal/export"
	"github.com/san-kum/blocksim/internal/storage"
	"github.com/san-kum/blocksim/internal/viz"
)

const maxPlots = 6

// resolveConfig layers the run configuration: defaults, then a preset,
// then a config file, then flags the user actually set.
func resolveConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		loaded.Model = model
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("tol") {
		cfg.Solver.Tolerance = tolerance
	}
	if flags.Changed("max-iter") {
		cfg.Solver.MaxIterations = maxIter
	}
	if flags.Changed("data") {
		cfg.Store.Path = dataDir
	}
	if flags.Changed("store") {
		cfg.Store.Kind = storeKind
	}
	values, err := parseParams(params)
	if err != nil {
		return nil, err
	}
	for name, v := range values {
		cfg.SetParam(name, v)
	}

	return cfg, cfg.Validate()
}

func parseParams(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for name, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %q is not a number", name, s)
		}
		out[name] = v
	}
	return out, nil
}

func openStore(kind, dir string) (storage.Store, error) {
	path := dir
	if kind == "sqlite" {
		path = filepath.Join(dir, "runs.db")
	}
	st, err := storage.Open(kind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, experiment.NewRegistry())
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("running %s: %d steps of %gs\n", cfg.Model, cfg.Steps, cfg.Dt())
	start := time.Now()

	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Print(viz.RenderReport(result.Report))
	fmt.Printf("  %s %s\n", viz.MetricLabel.Render(fmt.Sprintf("%-18s", "elapsed")), viz.MetricValue.Render(elapsed.String()))

	if !noSave {
		st, err := openStore(cfg.Store.Kind, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		runID, err := st.Save(result.Record())
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", runID)
	}

	if showPlot {
		rec := result.Record()
		fmt.Println()
		printCharts(rec.Series, 80, 10)
	}
	return nil
}

func showPlan(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	setup, err := experiment.NewRegistry().Build(cfg.Model, cfg)
	if err != nil {
		return err
	}
	plan, err := setup.Model.Plan()
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(cfg.Model))
	fmt.Printf("%d blocks, %d variables, %d signals, margin %d\n\n",
		len(setup.Model.Blocks()), len(setup.Model.Variables()), len(setup.Model.Signals()), setup.Model.Margin())
	fmt.Print(viz.RenderPlan(plan))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tSTEPS\tDT\tFAILURES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%d\t%.4gs\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Steps,
			run.Dt,
			run.Failures,
		)
	}

	return w.Flush()
}

// loadRun reads a stored run back into a record.
func loadRun(runID string) (*storage.Record, error) {
	st, err := openStore(storeKind, dataDir)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	meta, err := st.Load(runID)
	if err != nil {
		return nil, err
	}
	times, series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, err
	}
	return &storage.Record{Meta: *meta, Times: times, Series: series}, nil
}

func printCharts(series []storage.Series, width, height int) {
	for i, s := range series {
		if i == maxPlots {
			fmt.Println(viz.Subtle.Render(fmt.Sprintf("%d more variables not shown", len(series)-i)))
			break
		}
		fmt.Println(viz.Chart(s.Name, s.Values, width, height))
		fmt.Println()
	}
}

func plotRun(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}

	if len(rec.Times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", rec.Meta.ID)
	fmt.Printf("model: %s\n", rec.Meta.Model)
	fmt.Printf("samples: %d\n\n", len(rec.Times))

	printCharts(rec.Series, plotWidth, plotHeight)
	return nil
}

func pngRun(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}

	path := outPath
	if path == "" {
		path = rec.Meta.ID + ".png"
	}
	if err := export.SavePNG(path, rec.Meta.Model, rec.Times, rec.Series); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func viewRun(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s  %s", rec.Meta.Model, rec.Meta.ID)
	p := tea.NewProgram(viz.NewBrowser(title, rec.Times, rec.Series), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func exportJSON(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return export.WriteJSON(os.Stdout, rec)
	}
	if err := export.ExportJSON(outPath, rec); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", len(rec.Times), outPath)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	rec, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return export.WriteCSV(os.Stdout, rec)
	}
	if err := export.ExportCSV(outPath, rec); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", len(rec.Times), outPath)
	return nil
}

func showMetrics(cmd *cobra.Command, args []string) error {
	st, err := openStore(storeKind, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.Title.Render(meta.ID))
	fmt.Print(viz.RenderMetrics(meta.Metrics))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := experiment.NewRegistry().ListModels()
	if len(args) == 1 {
		models = args
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPRESET\tDURATION\tSTEPS\tPARAMS")
	for _, model := range models {
		for _, name := range config.ListPresets(model) {
			p := config.GetPreset(model, name)
			fmt.Fprintf(w, "%s\t%s\t%gs\t%d\t%v\n", model, name, p.Duration, p.Steps, p.Params)
		}
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDESCRIPTION")
	for _, name := range registry.ListModels() {
		fmt.Fprintf(w, "%s\t%s\n", name, registry.Describe(name))
	}
	return w.Flush()
}
